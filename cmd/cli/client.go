package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

const defaultAPIURL = "http://localhost:5000/api"

// envelope mirrors the server's response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
}

type member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type project struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	CreatedBy   *struct {
		Name string `json:"name"`
	} `json:"createdBy"`
	Members []struct {
		Name string `json:"name"`
	} `json:"members"`
}

type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &apiClient{http: c}
}

// call sends body (if any) and decodes the envelope's data into out (if any)
func (c *apiClient) call(method, path string, body, out any) error {
	req := c.http.R()
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("unexpected response (HTTP %d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if resp.IsError() || !env.Success {
		if env.Message == "" {
			env.Message = resp.Status()
		}
		return errors.New(env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// login is the one endpoint that answers without the envelope on success
func (c *apiClient) login(email, password string) (string, *member, error) {
	var result struct {
		Token  string  `json:"token"`
		Member *member `json:"member"`
	}
	var failure envelope
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&result).
		SetError(&failure).
		Post("/auth/login")
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if failure.Message == "" {
			failure.Message = resp.Status()
		}
		return "", nil, errors.New(failure.Message)
	}
	if result.Token == "" {
		return "", nil, errors.New("server returned no token")
	}
	return result.Token, result.Member, nil
}

func getAPIURL() string {
	if url := os.Getenv("PROJECTHUB_API"); url != "" {
		return url
	}
	return defaultAPIURL
}

func tokenFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".projecthub", "token"), nil
}

func saveToken(token string) error {
	path, err := tokenFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken() string {
	path, err := tokenFile()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func removeToken() error {
	path, err := tokenFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// tokenSubject reads the claims locally; the server remains the judge of validity
func tokenSubject(token string) (id, role string, expires time.Time, err error) {
	claims := jwt.MapClaims{}
	if _, _, err = jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", "", time.Time{}, fmt.Errorf("stored token is malformed: %w", err)
	}
	id, _ = claims.GetSubject()
	role, _ = claims["role"].(string)
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		expires = exp.Time
	}
	return id, role, expires, nil
}
