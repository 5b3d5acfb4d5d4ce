package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/domain"
)

// Connection wraps one pion PeerConnection toward a single remote
// participant. The coordinator owns its lifecycle; media flows directly
// between peers once negotiation completes.
type Connection struct {
	pc     *webrtc.PeerConnection
	peer   domain.ParticipantID
	onICE  func(webrtc.ICECandidateInit)
	onTrk  func(*webrtc.TrackRemote)
	onFail func()

	failOnce sync.Once
}

// Factory is the core.TransportFactory producing pion-backed
// connections, tagged with the remote participant for logging.
func Factory(cfg webrtc.Configuration, peer domain.ParticipantID) (core.MediaTransport, error) {
	return NewConnection(cfg, peer)
}

func NewConnection(cfg webrtc.Configuration, peer domain.ParticipantID) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &Connection{pc: pc, peer: peer}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			c.failOnce.Do(func() {
				if c.onFail != nil {
					c.onFail()
				}
			})
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if c.onTrk != nil {
			c.onTrk(track)
		}
	})

	return c, nil
}

var _ core.MediaTransport = (*Connection)(nil)

func (c *Connection) CreateAndSetOffer() (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) AddLocalTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }
func (c *Connection) OnTrack(fn func(*webrtc.TrackRemote))            { c.onTrk = fn }
func (c *Connection) OnFailure(fn func())                             { c.onFail = fn }

func (c *Connection) Close() error {
	err := c.pc.Close()
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.peer)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", string(c.peer)).Msg("closed")
	}
	return err
}
