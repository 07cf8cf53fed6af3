// Package agent runs the tool-calling loop that turns one user utterance into
// an Invocation: the model's final narration plus the trace of bank tools it
// executed on the way.
package agent
