package models

// Perspective selects one of the fixed summarization styles.
type Perspective string

const (
	PerspectiveStudent Perspective = "student"
	PerspectiveLawyer  Perspective = "lawyer"
	PerspectiveJudge   Perspective = "judge"
)

var (
	AnswerPromptTemplate = `Use the pieces of information provided in the context to answer the user's question.
If you don't know the answer, just say that you don't know - don't try to make up an answer.
Only use the information from the provided context.

Question: %s
Context: %s
Answer:
`

	StudentPromptTemplate = `Summarize the following case for a *law student*.
Explain facts, evidence, reasoning, and judgment in simple educational language.
Context:
%s
`

	LawyerPromptTemplate = `Summarize the following case for a *lawyer*.
Highlight key legal points, arguments, precedents, and strategy angles.
Context:
%s
`

	JudgePromptTemplate = `Summarize the following case for a *judge*.
Focus on admissible evidence, charges, and judicial reasoning objectively.
Context:
%s
`
)
