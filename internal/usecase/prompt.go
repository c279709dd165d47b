package usecase

import "fmt"

const insightPromptTemplate = `Atue como um psicólogo clínico compassivo. O usuário sente: "%s". ` +
	`Escreva um insight curto (max 40 palavras), acolhedor. Tom: Calmo, sofisticado. PT-BR.`

// buildInsightPrompt interpolates the already-trimmed word into the fixed template.
func buildInsightPrompt(word string) string {
	return fmt.Sprintf(insightPromptTemplate, word)
}
