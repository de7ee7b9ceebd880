package gpt

// System prompts live here so personality changes are a single-file edit.
// Every answer is spoken aloud, so they forbid formatting.

// PromptPersona opens every request.
const PromptPersona = `You are Julian, a helpful and friendly voice assistant.

Rules:
- Answer in plain spoken sentences. Your answer will be read aloud by a TTS engine.
- Never use markdown, lists, code blocks or emojis.
- Use what you know about the user when it is relevant, but do not recite it back unprompted.
- If a short follow-up question would genuinely help the user, put it on its own final line starting with "Follow-up:". Ask at most one.`

// answerSuffix is appended to the user's words in the final message.
const answerSuffix = ". Please provide a detailed and concise answer."

// FallbackReply is spoken when the model cannot be reached.
const FallbackReply = "I'm sorry, I'm having trouble generating a response right now."

// followUpMarker separates the answer from an optional follow-up question.
const followUpMarker = "Follow-up:"
