package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"grammargame/internal/models"

	"github.com/gojek/heimdall/v7"
)

type player struct {
	client  heimdall.Client
	baseURL string
	token   string
}

func (p *player) authenticate(username string, password string) error {
	credentials := models.Credentials{Username: username, Password: password}

	var response models.LoginResponse
	err := p.post("/api/v1/auth/login", credentials, &response)
	if err != nil {
		var statusErr *statusError
		if !errors.As(err, &statusErr) || statusErr.code >= http.StatusInternalServerError {
			return err
		}
		if err := p.post("/api/v1/auth/register", credentials, &response); err != nil {
			return err
		}
	}

	p.token = response.Token
	return nil
}

// play walks one session through create, rounds of progress, and complete.
func (p *player) play(rounds int, step func() int) (*models.GameSession, error) {
	var session models.GameSession
	if err := p.post("/api/v1/sessions", nil, &session); err != nil {
		return nil, err
	}

	score := 0
	for round := 1; round <= rounds; round++ {
		score += step()
		progress := models.GameSessionProgress{Score: score, Level: 1 + round/3}
		if err := p.post(fmt.Sprintf("/api/v1/sessions/%s/progress", session.ID), progress, &session); err != nil {
			return nil, err
		}
	}

	completion := models.GameSessionCompletion{FinalScore: &score}
	if err := p.post(fmt.Sprintf("/api/v1/sessions/%s/complete", session.ID), completion, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (p *player) leaderboard(board string) (*models.LeaderboardResponse, error) {
	var response models.LeaderboardResponse
	res, err := p.client.Get(p.url("/api/v1/leaderboard/"+board), p.headers())
	if err != nil {
		return nil, err
	}
	if err := decodeResponse(res, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (p *player) post(path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	res, err := p.client.Post(p.url(path), body, p.headers())
	if err != nil {
		return err
	}
	return decodeResponse(res, out)
}

func (p *player) url(path string) string {
	return strings.TrimRight(p.baseURL, "/") + path
}

func (p *player) headers() http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if p.token != "" {
		headers.Set("Authorization", "Bearer "+p.token)
	}
	return headers
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// decodeResponse accepts both a {"data": ...} envelope and a bare payload.
func decodeResponse(res *http.Response, out any) error {
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= http.StatusBadRequest {
		return &statusError{res.StatusCode, strings.TrimSpace(string(b))}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return json.Unmarshal(envelope.Data, out)
	}
	return json.Unmarshal(b, out)
}
