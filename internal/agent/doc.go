// Package agent runs the reasoning loop between a language model and the
// tool registry.
//
// Each user message starts in the reasoning state: the system prompt, the
// session transcript and the tool catalog are sent to the model. A final
// answer ends the turn. A tool request moves the loop to the acting state,
// where every requested call runs through the registry in request order and
// its result is appended as a tool turn before the model is asked again.
//
// Tool failures, malformed calls and authentication failures never abort the
// loop; they are recorded as error turns and shown to the model. Model
// failures and the iteration cap end the turn with an assistant error turn
// so the transcript stays consistent for the next message.
package agent
