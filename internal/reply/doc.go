// Package reply turns the outcome of one agent invocation into exactly one
// non-empty string for the user. Interpret handles results, Classify handles
// errors raised by the model transport.
package reply
