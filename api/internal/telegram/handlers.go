package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"foodbot/api/internal/analyzer"
	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/store"
)

func isImageDocument(d *tgbotapi.Document) bool {
	return imagecodec.IsSupportedImage(d.MimeType)
}

// analyzeFile downloads a photo, runs both pipeline stages and replies with
// the analysis.
func (r *Router) analyzeFile(chatID int64, fileID string) {
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	r.send(chatID, textAnalyzing)

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(chatID, "Não consegui obter o arquivo: "+err.Error())
		return
	}
	img, err := r.download(url)
	if err != nil {
		r.send(chatID, "Não consegui baixar a foto: "+err.Error())
		return
	}
	if !imagecodec.IsSupportedImage(imagecodec.DetectMIME(img)) {
		r.send(chatID, textUnsupported)
		return
	}

	a := r.EngManager.Get(chatID)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := a.Analyze(ctx, img)
	if err != nil {
		log.Printf("chat %d: analyze via %s: %v", chatID, a.Name(), err)
		r.send(chatID, errorText(err))
		return
	}
	r.send(chatID, res.Analysis)
	r.record(chatID, img, res)
}

func (r *Router) record(chatID int64, img []byte, res analyzer.Result) {
	if r.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.History.Insert(ctx, &store.Analysis{
		Source:      "telegram",
		ChatID:      chatID,
		ImageHash:   store.ImageHash(img),
		ImageMIME:   res.ImageMIME,
		Provider:    res.Provider,
		VisionModel: res.VisionModel,
		TextModel:   res.TextModel,
		Description: res.Description,
		Analysis:    res.Analysis,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	})
	if err != nil {
		log.Printf("chat %d: history insert: %v", chatID, err)
	}
}

func (r *Router) download(url string) ([]byte, error) {
	c := r.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
