// Package model defines the Completer contract through which the engine asks
// an external text-generation service for the next utterance, plus test
// doubles. Provider adapters live in sub-packages (openai, anthropic) so the
// core never links a vendor SDK it does not use.
package model
