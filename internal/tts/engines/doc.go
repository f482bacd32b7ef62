// Package engines contains the synthesis backends: the local Piper binary
// and the Google Cloud Text-to-Speech REST API.
package engines
