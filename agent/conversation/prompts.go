package conversation

const decisionSystemPrompt = `Given the following conversation history and the new user question, decide whether to:
1. Perform an internal knowledge search (RAG) using the KnowledgeSearch tool when the question needs information from the user's documents.
2. Call the TableOperator tool when the user asks to add, remove or change columns or rows of the current table.
3. Respond directly when the question can be answered from the conversation alone.
Execute the appropriate tool call accordingly.`
