// callctl joins a scheduled teletherapy session from the terminal:
// useful for smoke-testing a relay deployment without a full client.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/adapters/gateway"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/adapters/media"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/adapters/rtc"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/adapters/signal"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/client"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/config"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

type logSink struct {
	client.NopSink
}

func (logSink) OnParticipantJoined(p domain.Participant) {
	log.Info().Str("user", p.Name).Str("role", string(p.Role)).Msg("participant joined")
}

func (logSink) OnParticipantLeft(_ domain.ParticipantID, name string) {
	log.Info().Str("user", name).Msg("participant left")
}

func (logSink) OnChat(msg domain.ChatMessage) {
	log.Info().Str("from", msg.SenderName).Str("text", msg.Text).Msg("chat")
}

func (logSink) OnSessionEnded(reason string) {
	log.Info().Str("reason", reason).Msg("session ended")
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var (
		sessionID = flag.String("session", "", "scheduled session id")
		token     = flag.String("token", "", "bearer credential")
		name      = flag.String("name", "callctl", "display name")
		role      = flag.String("role", "observer", "professional|patient|observer")
		synthetic = flag.Bool("synthetic", false, "send generated tracks instead of camera and mic")
		endRoom   = flag.Bool("end", false, "end the session for everyone on exit")
	)
	flag.Parse()

	if *sessionID == "" || *token == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	local, err := domain.NewParticipant(*name, domain.Role(*role))
	if err != nil {
		log.Fatal().Err(err).Msg("bad participant")
	}

	mediaFactory := func() (core.MediaSource, error) { return media.Acquire() }
	if *synthetic {
		mediaFactory = func() (core.MediaSource, error) { return media.NewSynthetic() }
	}

	coord := client.New(*local, client.Factories{
		Gateway: func(tok string) core.Gateway {
			return gateway.New(cfg.GatewayURL, tok, cfg.RequestTimeout)
		},
		Signal: func(tok string) core.SignalChannel {
			return signal.NewClient(cfg.RelayWSURL, tok, signal.Options{
				ReconnectBase:   cfg.ReconnectBase,
				ReconnectMax:    cfg.ReconnectMax,
				ReconnectBudget: cfg.ReconnectBudget,
			})
		},
		Transport: rtc.Factory,
		Media:     mediaFactory,
	}, logSink{}, client.Options{JoinTimeout: cfg.JoinTimeout})

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := coord.Initialize(ctx, *token); err != nil {
		if errors.Is(err, core.ErrConfigUnavailable) {
			log.Warn().Err(err).Msg("using fallback ice servers")
		} else {
			log.Fatal().Err(err).Msg("initialize")
		}
	}

	roomID, err := coord.Join(ctx, domain.SessionID(*sessionID))
	if err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("room", string(roomID)).Msg("in session, ctrl-c to leave")

	<-ctx.Done()
	if *endRoom {
		if err := coord.EndForAll(context.Background(), domain.SessionID(*sessionID)); err != nil {
			log.Warn().Err(err).Msg("end session")
			coord.Leave()
		}
	} else {
		coord.Leave()
	}
}
