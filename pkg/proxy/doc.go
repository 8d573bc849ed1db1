// Package proxy forwards mock requests to a downstream service.
//
// A Forwarder turns a mock.MockRequest into an outgoing HTTP request against
// a target base URL, optionally lets a builder script rewrite it, performs the
// call without transparent decompression, and optionally lets a second script
// rewrite the downstream response. Without a response builder the downstream
// bytes are returned untouched.
package proxy
