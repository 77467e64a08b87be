// Package watch implements the websocket watch-list protocol.
//
// Each connection moves through Connecting, Authenticated, Looping and
// Closed. While looping, the handler races inbound control frames against
// broadcast quote results:
//
//	{"type":"add","symbols":["AAPL"]}        union into the watch-list
//	{"type":"remove","symbols":["AAPL"]}     subtract from the watch-list
//	{"type":"subscribe","symbols":["SPY"]}   replace the watch-list
//	{"type":"ping","data":[1,2,3]}           answered with a transport pong
//
// Control frames are acknowledged with {"event":"ok",...} echoing the
// request. Results are pushed as {"event":"quote","data":{...}} and failures
// as {"error":{"<Kind>":"<message>"}}. After every event the connection's
// watch-list is re-asserted to the quote service.
package watch
