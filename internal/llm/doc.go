// Package llm abstracts the language models the agent reasons with.
//
// A Model takes a transcript, a system prompt and a tool catalog and
// returns a Reply: either a FinalAnswer for the user or a ToolRequest
// naming the calls to run before asking again. Gemini, OpenAI and
// Anthropic are supported through their Go SDKs; Scripted replays canned
// replies in tests.
package llm
