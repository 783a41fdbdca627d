package push

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zllovesuki/rtdn/notification"
	"github.com/zllovesuki/rtdn/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Handler processes one decoded push envelope
type Handler interface {
	HandleEnvelope(ctx context.Context, env *notification.Envelope) (response.Result, error)
}

// Options contains the configuration for the push endpoint
type Options struct {
	Pipeline Handler
	Decoder  *notification.Decoder
	Logger   *zap.Logger
	// Token is the shared secret expected in the token query parameter. Empty disables the check
	Token string
}

// Service receives Pub/Sub push deliveries of Google Play notifications
type Service struct {
	Options
}

func NewService(option Options) (*Service, error) {
	if option.Pipeline == nil {
		return nil, fmt.Errorf("nil Pipeline is invalid")
	}
	if option.Decoder == nil {
		return nil, fmt.Errorf("nil Decoder is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.Token) == 0 {
		option.Logger.Warn("Push token is empty, push requests are not authenticated")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) authorized(r *http.Request) bool {
	if len(s.Token) == 0 {
		return true
	}
	token := r.URL.Query().Get("token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) == 1
}

func (s *Service) receive(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}

	var req notification.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Logger.Warn("Push body is not valid JSON",
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.Logger.Warn("Push body is missing fields",
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	env := s.Decoder.DecodeRequest(&req)
	if env == nil {
		http.Error(w, "undecodable message", http.StatusBadRequest)
		return
	}

	result, err := s.Pipeline.HandleEnvelope(r.Context(), env)
	if err != nil {
		s.Logger.Error("Notification processing failed",
			zap.String("MessageID", env.MessageID),
			zap.Error(err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if result != response.SUCCESS {
		// any non 2xx makes Pub/Sub redeliver
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Router will return the routes under the push API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.receive)

	return r
}
