package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dinar-ticker/internal/conversion"
	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/ratelimit"
	"dinar-ticker/internal/service"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const requestTimeout = 5 * time.Second

type RateQuerier interface {
	Base() domain.Code
	Rates(ctx context.Context) domain.RateTable
	Convert(ctx context.Context, req domain.ConversionRequest, opts service.ConvertOptions) (*domain.ConversionResult, error)
	LivePrices(ctx context.Context) ([]domain.LiveQuote, error)
	LivePrice(ctx context.Context, id string) (*domain.LiveQuote, error)
}

// StartTelegramBot registers the chat commands and starts long polling in
// the background. An empty token skips startup.
func StartTelegramBot(token string, logger *zap.Logger, rates RateQuerier, limiter *ratelimit.Limiter) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == "" {
		logger.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("create Telegram bot: %w", err)
	}

	b.Use(throttle(limiter))

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/rates", reply(func(ctx context.Context, _ []string) string {
		return ratesReply(ctx, rates)
	}))
	b.Handle("/convert", reply(func(ctx context.Context, args []string) string {
		return convertReply(ctx, rates, args)
	}))
	b.Handle("/live", reply(func(ctx context.Context, _ []string) string {
		return liveReply(ctx, rates)
	}))
	b.Handle("/price", reply(func(ctx context.Context, args []string) string {
		return priceReply(ctx, rates, args)
	}))

	logger.Info("Telegram bot started")
	go b.Start()
	return nil
}

func reply(fn func(ctx context.Context, args []string) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()))
	}
}

func throttle(limiter *ratelimit.Limiter) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			key := "anonymous"
			if chat := c.Chat(); chat != nil {
				key = strconv.FormatInt(chat.ID, 10)
			}
			if !limiter.Allow(key) {
				return c.Send("Too many requests, try again in a minute.")
			}
			return next(c)
		}
	}
}

func ratesReply(ctx context.Context, rates RateQuerier) string {
	table := rates.Rates(ctx)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rates in %s\n", rates.Base())
	for _, code := range table.Codes() {
		fmt.Fprintf(&sb, "%s: %s\n", code, domain.FormatAmount(table[code], domain.DisplayPlaces))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func convertReply(ctx context.Context, rates RateQuerier, args []string) string {
	usage := "Usage: /convert 100 EUR USD"
	if len(args) != 3 {
		return usage
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "Invalid amount: " + args[0] + "\n" + usage
	}

	res, err := rates.Convert(ctx, domain.ConversionRequest{
		Amount: amount,
		From:   domain.Code(args[1]),
		To:     domain.Code(args[2]),
	}, service.ConvertOptions{Strict: true})
	if err != nil {
		var rnf *conversion.RateNotFoundError
		if errors.As(err, &rnf) {
			return fmt.Sprintf("Unknown code: %s\nSupported: %s", rnf.Code, strings.Join(domain.SupportedCodes(), ", "))
		}
		return "Conversion failed: " + err.Error()
	}
	return fmt.Sprintf("%s %s = %s %s", domain.FormatAmount(res.Amount, domain.DisplayPlaces), res.From, res.Display, res.To)
}

func liveReply(ctx context.Context, rates RateQuerier) string {
	quotes, err := rates.LivePrices(ctx)
	if err != nil {
		return "Live prices unavailable: " + err.Error()
	}
	var sb strings.Builder
	for _, q := range quotes {
		sb.WriteString(formatQuote(q))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func priceReply(ctx context.Context, rates RateQuerier, args []string) string {
	if len(args) == 0 {
		return "Usage: /price EUR"
	}
	q, err := rates.LivePrice(ctx, args[0])
	if err != nil {
		if errors.Is(err, service.ErrUnknownAsset) {
			return "Unknown asset: " + strings.ToUpper(args[0])
		}
		return "Live prices unavailable: " + err.Error()
	}
	return fmt.Sprintf("%s (%s)\nPrice: %s %s\nPrevious: %s\nChange: %.2f%%",
		q.Name, q.ID,
		domain.FormatAmount(q.Current, domain.DisplayPlaces), rates.Base(),
		domain.FormatAmount(q.Previous, domain.DisplayPlaces),
		q.ChangePct,
	)
}

func formatQuote(q domain.LiveQuote) string {
	arrow := "="
	switch q.Direction {
	case domain.DirectionUp:
		arrow = "▲"
	case domain.DirectionDown:
		arrow = "▼"
	}
	return fmt.Sprintf("%s %s %s", arrow, q.ID, domain.FormatAmount(q.Current, domain.DisplayPlaces))
}
