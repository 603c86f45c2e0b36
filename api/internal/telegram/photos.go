package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rice-grader/api/internal/analyze"
)

func isImageDocument(doc *tgbotapi.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID

	fileID, name := "", ""
	if len(msg.Photo) > 0 {
		// largest size comes last
		ph := msg.Photo[len(msg.Photo)-1]
		fileID, name = ph.FileID, ph.FileUniqueID+".jpg"
	} else {
		fileID, name = msg.Document.FileID, msg.Document.FileName
	}

	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := download(file.Link(r.Bot.Token))
	if err != nil {
		r.SendError(cid, err)
		return
	}

	dir, err := os.MkdirTemp("", "grain-tg-*")
	if err != nil {
		r.SendError(cid, err)
		return
	}
	defer os.RemoveAll(dir)

	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "photo.jpg"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, imgBytes, 0o600); err != nil {
		r.SendError(cid, err)
		return
	}

	r.send(cid, "Photo received, grading…")

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := r.Analyzer.Analyze(ctx, analyze.Request{
		Schema:    r.Schemas.Get(cid),
		ImagePath: path,
		Filename:  name,
	})
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.send(cid, FormatReport(report))
}

func download(url string) ([]byte, error) {
	resp, err := httpClient().Get(url)
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

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
