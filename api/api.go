package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/uniportal-api/utils"
	"github.com/sahilchouksey/uniportal-api/utils/response"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *utils.Logger
}

// NewAPIServer creates the fiber engine. bodyLimit must fit the largest
// accepted upload, which is a course video.
func NewAPIServer(listenAddress string, bodyLimit int, log *utils.Logger) *APIServer {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:      "uniportal-api",
			BodyLimit:    bodyLimit,
			ErrorHandler: errorHandler(log),
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

// errorHandler answers errors no handler turned into a response (unknown
// routes, oversized bodies, panics recovered by the middleware) in the
// common envelope.
func errorHandler(log *utils.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return response.Error(c, fe.Code, fe.Message, "HTTP_ERROR")
		}
		return response.Internal(c, log, "Internal server error", err)
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info("starting API server", "address", s.listenAddress)
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
