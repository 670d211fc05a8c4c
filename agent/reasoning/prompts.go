package reasoning

import (
	"fmt"
	"strings"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/types"
)

const decomposeSystemPrompt = `You are an expert at converting user questions into database queries and queries for a vectorstore.
You have access to a database of information extracted from the user's documents.

Your task involves two responsibilities:
1. Perform query decomposition: Given a user question, break it down into distinct sub-questions that you need to
answer in order to address the original question. Ensure the sub-questions are clear and distinct.
2. Convert queries for a vectorstore: For each sub-question, strip out information that is not relevant to the retrieval task and convert it into a query suitable for a vectorstore.

Additional Instructions:
- If there are acronyms or words you are not familiar with, do not try to rephrase them.
- Ensure that each query or sub-question is actionable and specific for efficient retrieval.

Respond with a JSON object: {"sub_queries": ["...", "..."]}`

const hintPrompt = `You are an assistant tasked with transforming a natural language query into identified properties for a property graph index.
Your goal is to extract only the possible nodes (key entities) from the user's query. Do not include relationships, explanations, or additional context.

Return the output in the following format:
<node_1>, <node_2>, <node_3>, ...

Example:
If the user query is "How do LLMs work?", the output should be:
LLMs, Working

Here is the sub-query: %s`

const contextSystemPrompt = `You are an advanced AI assistant tasked with answering user queries comprehensively and accurately.
You have access to the following contexts:
1. **Knowledge Graph Context**: Structured relational data that represents relationships between entities.
2. **Vector Store Context**: Semantically relevant unstructured information extracted from datasets.
3. **Keyword Context**: Passages that share exact terms with the query.

Guidelines:
- Understand the query's intent and identify key entities, relationships, or data points.
- Leverage the Knowledge Graph Context to retrieve structured and factual information.
- Consult the Vector Store and Keyword Contexts to provide additional unstructured and semantic context.
- Cross-reference data from all contexts to ensure accuracy and eliminate inconsistencies.
- Deliver a detailed, clear, and complete response while citing data sources when possible.

Respond to the query as per these instructions.`

const contextInputPrompt = `Original Query: %s

Knowledge Graph Context: %s

Vector Store Context: %s

Keyword Context: %s`

const answerPrompt = `You have been provided with an original query and a series of subquery contexts.
Each subquery includes a smaller query, some properties, and contextual information.

Original Query:
%s

Subquery Contexts:
%s

Instructions:
1. Think and plan about the original query and the subqueries.
2. Combine and synthesize the insights from each subquery.
3. Draft a conclusive answer that addresses the "Original Query" thoroughly.
4. Be detailed, accurate, and informative in your response.
5. Return a properly formatted markdown string as your final answer.

Do not include any extra text or markdown;
Final Answer:`

const composeTablePrompt = `You are a data assistant. Turn the answer below into a table.

Your response must:
- Be a JSON array of objects, one object per row.
- Dynamically determine the keys (columns) based on the content, but ensure that all objects share exactly the same keys.
- Return [] when the answer contains nothing worth tabulating.

Final answer to tabulate:
%s`

const updateTableExample = `Example:
Input Text:
"RCA is evaluated using a dialogue coherence score and response latency measured in milliseconds."

Existing table:
[
  {"Evaluation Category": "Dialogue Coherence", "Metric / Description": "Dialogue coherence score across turns"},
  {"Evaluation Category": "Response Latency", "Metric / Description": "Response latency in milliseconds"}
]

User instructions: "Add a row for scalability measured in GFLOPS under heavy load."

Final table:
[
  {"Evaluation Category": "Dialogue Coherence", "Metric / Description": "Dialogue coherence score across turns"},
  {"Evaluation Category": "Response Latency", "Metric / Description": "Response latency in milliseconds"},
  {"Evaluation Category": "Scalability", "Metric / Description": "Computational cost in GFLOPS under heavy load"}
]`

const updateTablePrompt = `You are a data assistant. Your task is to update an existing table based on user instructions.
You will be provided with the following inputs:
1. A detailed Input Text that offers contextual information relevant to the data.
2. An Existing Table represented as a JSON array of objects.
3. A User Instruction detailing specific modifications to be made to the table (e.g., modifications, additions, deletions).

Your response must:
- Dynamically determine the keys based on the input, but ensure that all objects (rows) share the same keys.
- Keep every existing row unless the instruction explicitly asks to remove it.
- Output the updated table in valid JSON format.

%s

Now, update the table based on the following inputs.

Input Text:
%s

Existing table:
%s

User instructions:
"%s"

Final table:`

var subQueriesSchema = llm.MustCompileSchema("sub_queries", `{
  "type": "object",
  "properties": {
    "sub_queries": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["sub_queries"]
}`)

// FormatSteps renders reasoning steps in order for the answer prompt.
func FormatSteps(steps []types.ReasoningStep) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = fmt.Sprintf("Subquery order %d:\nSubquery: %s\nProperties: %s\nContext: %s\n",
			i+1, s.SubQueryText, s.StructuredHint, s.ComposedContext)
	}
	return strings.Join(parts, "\n")
}
