package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/config"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/utils"
)

const (
	telegramMaxLen        = 4096
	telegramMaxCaptionLen = 1024
)

type TelegramChannel struct {
	*BaseChannel
	bot      *telego.Bot
	config   config.TelegramConfig
	mediaDir string
	cancel   context.CancelFunc
}

// NewTelegramChannel builds the bot client. Photos buyers send are downloaded
// into mediaDir before the broker sees them.
func NewTelegramChannel(cfg config.TelegramConfig, mb *bus.MessageBus, mediaDir string) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", mb, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
		mediaDir:    mediaDir,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	ctx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start long polling: %w", err)
	}
	c.cancel = cancel

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					c.setRunning(false)
					return
				}
				if update.Message != nil {
					c.handleMessage(ctx, update.Message)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	c.setRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := telegramChatID(msg.To.LocalID())
	if err != nil {
		return err
	}

	if len(msg.Media) > 0 {
		return c.sendPhotos(ctx, chatID, msg.Content, msg.Media)
	}
	return c.sendText(ctx, chatID, msg.Content)
}

func (c *TelegramChannel) sendText(ctx context.Context, chatID telego.ChatID, content string) error {
	chunks := splitLargeMessage(markdownToTelegramHTML(content), telegramMaxLen)
	for i, chunk := range chunks {
		if len(chunks) > 1 {
			chunk = fmt.Sprintf("[%d/%d]\n%s", i+1, len(chunks), chunk)
		}
		tgMsg := tu.Message(chatID, chunk)
		tgMsg.ParseMode = telego.ModeHTML

		if _, err := c.bot.SendMessage(ctx, tgMsg); err != nil {
			logger.WarnCF("telegram", "HTML parse failed, falling back to plain text", map[string]interface{}{
				"chunk": i + 1,
				"error": err.Error(),
			})
			if _, err := c.bot.SendMessage(ctx, tu.Message(chatID, stripMarkup(chunk))); err != nil {
				return fmt.Errorf("send message chunk %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// sendPhotos sends each image, captioning the first. A caption over the
// Telegram limit follows as its own message.
func (c *TelegramChannel) sendPhotos(ctx context.Context, chatID telego.ChatID, caption string, files []string) error {
	overflow := ""
	if len(caption) > telegramMaxCaptionLen {
		overflow, caption = caption, ""
	}
	for i, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}

		params := tu.Photo(chatID, tu.File(f))
		if i == 0 && caption != "" {
			params.Caption = markdownToTelegramHTML(caption)
			params.ParseMode = telego.ModeHTML
		}
		_, err = c.bot.SendPhoto(ctx, params)
		f.Close()
		if err != nil {
			return fmt.Errorf("send photo %s: %w", path, err)
		}
		logger.DebugCF("telegram", "Photo sent", map[string]interface{}{
			"path": path,
		})
	}
	if overflow != "" {
		return c.sendText(ctx, chatID, overflow)
	}
	return nil
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message) {
	user := message.From
	if user == nil {
		return
	}

	senderID := strconv.FormatInt(user.ID, 10)
	if user.Username != "" {
		senderID += "|" + user.Username
	}
	// Checked here as well so denied users never trigger downloads.
	if !c.IsAllowed(senderID) {
		logger.DebugCF("telegram", "Message rejected by allowlist", map[string]interface{}{
			"user_id":  user.ID,
			"username": user.Username,
		})
		return
	}

	msg := bus.InboundMessage{
		SenderID: senderID,
		ChatID:   strconv.FormatInt(message.Chat.ID, 10),
		Content:  strings.TrimSpace(strings.Join(nonEmpty(message.Text, message.Caption), "\n")),
		IsGroup:  message.Chat.Type != telego.ChatTypePrivate,
		Metadata: map[string]string{
			"message_id": strconv.Itoa(message.MessageID),
			"username":   user.Username,
			"first_name": user.FirstName,
		},
	}

	if reply := message.ReplyToMessage; reply != nil {
		msg.Quoted = &bus.Quote{
			ID:      strconv.Itoa(reply.MessageID),
			Content: strings.Join(nonEmpty(reply.Text, reply.Caption), "\n"),
		}
	}

	if loc := message.Location; loc != nil {
		msg.Location = &geo.Point{Lat: loc.Latitude, Lon: loc.Longitude}
	}

	if len(message.Photo) > 0 {
		// The last size is the largest.
		photo := message.Photo[len(message.Photo)-1]
		if path := c.download(ctx, photo.FileID, "photo_"+photo.FileUniqueID+".jpg"); path != "" {
			msg.Media = append(msg.Media, path)
		}
	}
	if doc := message.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		name := doc.FileName
		if name == "" {
			name = "document_" + doc.FileUniqueID
		}
		if path := c.download(ctx, doc.FileID, name); path != "" {
			msg.Media = append(msg.Media, path)
		}
	}

	logger.DebugCF("telegram", "Received message", map[string]interface{}{
		"sender_id": senderID,
		"chat_id":   msg.ChatID,
		"preview":   preview(msg.Content, 50),
		"media":     len(msg.Media),
		"quoted":    msg.Quoted != nil,
	})

	c.HandleMessage(msg)
}

func (c *TelegramChannel) download(ctx context.Context, fileID, name string) string {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		logger.ErrorCF("telegram", "Failed to get file", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}
	if file.FilePath == "" {
		return ""
	}

	path, err := utils.DownloadFile(ctx, c.bot.FileDownloadURL(file.FilePath), name, utils.DownloadOptions{
		Dir:          c.mediaDir,
		LoggerPrefix: "telegram",
	})
	if err != nil {
		logger.ErrorCF("telegram", "Failed to download file", map[string]interface{}{
			"file_id": fileID,
			"error":   err.Error(),
		})
		return ""
	}
	return path
}

// telegramChatID accepts numeric chat ids and "@channel" usernames.
func telegramChatID(local string) (telego.ChatID, error) {
	if strings.HasPrefix(local, "@") {
		return tu.Username(local), nil
	}
	id, err := strconv.ParseInt(local, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("invalid chat ID %q: %w", local, err)
	}
	return tu.ID(id), nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLargeMessage splits a message into chunks if it exceeds Telegram's limit
func splitLargeMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	remaining := content

	for len(remaining) > 0 {
		chunkSize := maxLen
		if len(remaining) < chunkSize {
			chunkSize = len(remaining)
		}

		// Try to break at a newline near the limit
		if chunkSize == maxLen {
			lastNewline := strings.LastIndex(remaining[:chunkSize], "\n")
			if lastNewline > maxLen*2/3 {
				chunkSize = lastNewline + 1
			}
		}

		chunks = append(chunks, remaining[:chunkSize])
		remaining = remaining[chunkSize:]
	}

	return chunks
}

var (
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe       = regexp.MustCompile(`\*([^*\n]+)\*`)
	tagRe        = regexp.MustCompile(`</?(?:b|code)>`)
)

// markdownToTelegramHTML renders the broker's chat markup: *bold* and
// `code`. Everything else is escaped.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codes []string
	text = inlineCodeRe.ReplaceAllStringFunc(text, func(m string) string {
		codes = append(codes, inlineCodeRe.FindStringSubmatch(m)[1])
		return fmt.Sprintf("\x00IC%d\x00", len(codes)-1)
	})

	text = escapeHTML(text)
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")

	for i, code := range codes {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00IC%d\x00", i), "<code>"+escapeHTML(code)+"</code>")
	}
	return text
}

func stripMarkup(html string) string {
	text := tagRe.ReplaceAllString(html, "")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return strings.ReplaceAll(text, "&amp;", "&")
}

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
