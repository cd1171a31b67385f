package pipeline

// defaultTemplate is used when no prompt template file is configured. The
// {content} placeholder receives the formatted extraction output.
const defaultTemplate = `You are a technical writer producing a compressed syntax reference for the Jac programming language.

Below is extracted material from the official documentation: signatures, code examples, syntax rules, and keyword inventory. Compress it into a single self-contained reference document.

Requirements:
- Preserve every distinct syntax form exactly as written (operators like ++>, +>:, ->:, spawn, with entry, by llm).
- Every code example must be a fenced block tagged ` + "```jac" + ` and must be syntactically valid on its own.
- Organize by construct: nodes, edges, walkers, objects, enums, abilities, globals.
- Keep prose minimal. Show, do not explain.
- Do not invent syntax that is absent from the material below.

MATERIAL:

{content}
`
