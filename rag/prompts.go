package rag

import "github.com/BaSui01/cortex/llm"

const pageSummaryPrompt = "Summarize the following document:\n\n%s"

const hypotheticalQuestionsPrompt = "Generate a list of exactly 3 hypothetical questions that the below document could be used to answer:\n\n%s"

const documentFeaturesPrompt = `You are an expert summarizer. Using the combined summaries below,
please produce a structured output in valid JSON format that follows this schema:

1. "summary": "A comprehensive summary of the document in 10-15 lines covering its core content and important sections.",
2. "highlights": ["Highlight 1", "Highlight 2", "Highlight 3", "Highlight 4", "Highlight 5"],
3. "document_type": "A one-word descriptor indicating the type of document."

Combined Summaries:
%s`

const tripletExtractionPrompt = `Some text is provided below. Given the text, extract up to %d knowledge triplets in the form of (subject, relation, object). Avoid stopwords.
Return JSON: {"triplets": [{"subject": "...", "relation": "...", "object": "..."}]}

Text: %s`

const synonymKeywordsPrompt = `Given some initial query, generate synonyms or related keywords up to %d in total, considering possible cases of capitalization, pluralization, common expressions, etc.
Provide all synonyms/keywords separated by '^' symbols: 'keyword1^keyword2^...'
Note, result should be in one-line, separated by '^' symbols.
----
QUERY: %s
----
KEYWORDS: `

var questionsSchema = llm.MustCompileSchema("hypothetical_questions", `{
  "type": "object",
  "properties": {
    "questions": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1}
  },
  "required": ["questions"]
}`)

var featuresSchema = llm.MustCompileSchema("document_features", `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "highlights": {"type": "array", "items": {"type": "string"}},
    "document_type": {"type": "string"}
  },
  "required": ["summary", "highlights", "document_type"]
}`)

var tripletsSchema = llm.MustCompileSchema("knowledge_triplets", `{
  "type": "object",
  "properties": {
    "triplets": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "subject": {"type": "string"},
          "relation": {"type": "string"},
          "object": {"type": "string"}
        },
        "required": ["subject", "relation", "object"]
      }
    }
  },
  "required": ["triplets"]
}`)
