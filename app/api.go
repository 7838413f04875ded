package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/parcelmas/api/auctions"
	"github.com/kilianp07/parcelmas/api/routes"
	"github.com/kilianp07/parcelmas/core/auction/logging"
)

// NewAPIHandler routes /api/routes to board and, when store is set,
// /api/auctions to the auction log.
func NewAPIHandler(board *routes.Board, store logging.Store, token string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/routes", routes.NewRouteHandler(board))
	if store != nil {
		mux.Handle("/api/auctions", auctions.NewLogHandler(store, token))
	}
	return mux
}

func (s *Service) serveAPI(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewAPIHandler(s.board, s.store, s.cfg.API.Token),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
