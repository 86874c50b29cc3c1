package telegram

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"foodbot/api/internal/llm"
	"foodbot/api/internal/store"
)

const maxMessageLen = 4000

const (
	textWelcome = `Olá! Envie uma foto do seu prato e eu devolvo uma análise nutricional: calorias aproximadas, classificação do alimento e sugestões para uma refeição mais equilibrada.

Comandos:
/engine [nome] escolhe o provedor de IA
/history mostra as últimas análises
/help mostra esta mensagem`
	textAnalyzing   = "Analisando a imagem ..."
	textUnsupported = "Envie uma imagem JPEG ou PNG."
	textSendPhoto   = "Envie uma foto do alimento para eu analisar."
)

func errorText(err error) string {
	switch {
	case errors.Is(err, llm.ErrAuthentication):
		return "⚠️ Falha de autenticação com o provedor de IA. Verifique a chave de API."
	case errors.Is(err, llm.ErrInvalidInput):
		return "⚠️ O provedor recusou a imagem ou a requisição. Tente outra foto."
	case errors.Is(err, llm.ErrTransient):
		return "⏳ O serviço de IA está indisponível no momento. Tente novamente em instantes."
	case errors.Is(err, llm.ErrUnknownResponse):
		return "⚠️ O provedor retornou uma resposta vazia ou inesperada."
	}
	return "⚠️ Erro ao analisar a imagem: " + err.Error()
}

func formatHistory(rows []store.Analysis) string {
	if len(rows) == 0 {
		return "Nenhuma análise registrada ainda."
	}
	var b strings.Builder
	b.WriteString("Últimas análises:\n")
	for i, a := range rows {
		fmt.Fprintf(&b, "\n%d) %s (%s)\n%s\n", i+1, a.CreatedAt.Format("02/01 15:04"), a.Provider, truncate(a.Analysis, 300))
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
