// Package control connects the node to an MQTT broker, turns commands on the
// control topics into camera transitions and publishes the retained state.
//
// Topics are rooted at a configured prefix T:
//
//	T/on     any payload: start the camera
//	T/off    any payload: stop the camera
//	T/set    {"value": true|false}: start or stop
//	T/state  retained {"timestamp": <unix seconds>, "on": <bool>}
//
// The Client owns the connection state machine and retries with a fixed
// interval for as long as its context lives. The broker library sits behind
// the Transport interface; PahoTransport is the production implementation.
package control
