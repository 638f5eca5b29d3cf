package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openchange/mapisync"
	"github.com/openchange/mapisync/idset"
	"github.com/openchange/mapisync/mapisync_errors"
	"github.com/openchange/mapisync/utils"
)

func AddCorsHeaders(f func(w http.ResponseWriter, req *http.Request)) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "86400")
		f(w, req)
	}
}

// StateHandler serves one state: GET returns the IDSET as hex, POST
// merges the hex IDSET in the body, PUT replaces it, DELETE removes it.
// The state is chosen by the folder and tag query parameters; written
// sets are compacted in mode.
func StateHandler(s *mapisync.Store, mode idset.Mode) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		folder, tag, err := parseFolderTag([]string{q.Get("folder"), q.Get("tag")})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch method := req.Method; method {
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			set, err := s.GetState(folder, tag)
			if errors.Is(err, mapisync_errors.ErrStateNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			} else if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			_, _ = io.WriteString(w, hex.EncodeToString(set.Serialize()))
		case http.MethodPost, http.MethodPut:
			body, err := io.ReadAll(req.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			set, err := parseIDSet(string(body))
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			set.SetMode(mode)
			if method == http.MethodPost {
				err = s.MergeState(req.Context(), folder, tag, set)
			} else {
				err = s.PutState(req.Context(), folder, tag, set)
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if err := s.DeleteState(folder, tag); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, fmt.Sprintf("Unsupported method %s", req.Method), http.StatusMethodNotAllowed)
		}
	}
}

func newMux(s *mapisync.Store, mode idset.Mode) (*http.ServeMux, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	for _, c := range s.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/state", AddCorsHeaders(StateHandler(s, mode)))
	return mux, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "expose the store over HTTP together with prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return withStore(cmd, func(_ context.Context, s *mapisync.Store, conf *Config, log utils.Logger) error {
				return serve(ctx, conf, s, log)
			})
		},
	}
	cmd.Flags().String("metrics-addr", "", "listen address")
	return cmd
}

func serve(ctx context.Context, conf *Config, s *mapisync.Store, log utils.Logger) error {
	mux, err := newMux(s, conf.Mode)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: conf.MetricsAddr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info("serving", "addr", conf.MetricsAddr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down", "addr", conf.MetricsAddr)
	return srv.Shutdown(shutdownCtx)
}
