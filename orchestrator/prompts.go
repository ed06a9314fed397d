package orchestrator

// Prompts for the routing, retrieval, grading and composition calls. The
// router and grader replies are parsed mechanically, so both instructions
// demand a bare label and nothing else.

const routerInstruction = `You are a router for a tomato-plant disease assistant.
Classify the user's latest message into exactly one category:
- chat: greetings, small talk, or questions answerable from the conversation so far (for example the already-detected disease name).
- rag: questions about tomato leaf diseases, their symptoms, causes, or treatment.
- web: questions needing current or external information such as news, prices, or local suppliers.
Reply with exactly one word: chat, rag or web. No punctuation, no explanation.`

const retrieverInstruction = `You help answer questions about tomato leaf diseases.
You have access to a knowledge-base search tool. If the question concerns
tomato diseases, call the tool with a concise search query derived from the
question. Otherwise answer directly.`

const webSearchInstruction = `You help answer questions about tomato plants
and their diseases. You have access to a web search tool. Call it with a
concise search query derived from the question.`

const graderTemplate = `You are grading retrieved context for sufficiency.

Question:
%s

Context:
%s

Does the context above fully answer the question? Reply with exactly one
word: yes or no.`

const ragComposerTemplate = `Answer the question using only the context below.
Quote or reference the relevant parts of the context. The context has been
verified to contain the answer, so do not say there is not enough
information.

Context:
%s

Question:
%s`

const webComposerTemplate = `Answer the question clearly and concisely using
the web search results below.

Web results:
%s

Question:
%s`

const chatInstruction = `You are a friendly assistant for a tomato-plant
disease service. Reply conversationally and helpfully.`
