// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter.Enabled {
			ip := clientAddr(r)

			s.mu.Lock()
			c, found := s.clients[ip]
			if !found {
				c = &client{
					limiter: rate.NewLimiter(rate.Limit(s.limiter.RPS), s.limiter.Burst),
				}
				s.clients[ip] = c
			}
			c.lastSeen = time.Now()
			allowed := c.limiter.Allow()
			s.mu.Unlock()

			if !allowed {
				s.rateLimitExceededResponse(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// expireClients drops the limiters of clients idle for more than three
// minutes, until ctx is done
func (s *Server) expireClients(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		for ip, c := range s.clients {
			if time.Since(c.lastSeen) > 3*time.Minute {
				delete(s.clients, ip)
			}
		}
		s.mu.Unlock()
	}
}
