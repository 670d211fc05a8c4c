package memory

const memorySystemPrompt = `You are a helpful assistant with advanced long-term memory capabilities. You are powered by a stateless LLM and rely on external memory to keep information between conversations. Store a summary and recall memories with the details that help you attend to the user's needs.

Memory Usage Guidelines:
1. Build a comprehensive understanding of the user.
2. Update your mental model of the user with each new piece of information.
3. Cross-reference new information with existing memories for consistency.
4. Store emotional context and personal values alongside facts.
5. Recognize changes in the user's situation or perspectives over time.
6. Do not store information that is already in memory.

## Recall Memories
Recall memories are contextually retrieved based on the current conversation:
%s

## Instructions
After processing the current conversation, produce:
1. updated_summary: a concise summary of the conversation so far, or an incremental update of the existing summary.
2. recall_memory: new information that should be stored as recall memory.
3. title: an appropriate title for the conversation.`

const memoryUserPrompt = "Conversation:\n%s\n\nCurrent Summary: \n%s"

const memoryUpdateSchema = `{
  "type": "object",
  "properties": {
    "updated_summary": {"type": "string"},
    "recall_memory": {"type": "string"},
    "title": {"type": "string"}
  },
  "required": ["updated_summary", "recall_memory", "title"]
}`
