// Package operator implements the Operator surface (spec §6):
// enable_trading, set_paper, manual_halt, clear_halt,
// update_risk_params, plus the mandatory live-mode double-gate.
package operator

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"

	"github.com/N0tT1m/invest-iq-sub000/internal/risk"
)

// liveTokenTTL bounds how long a live-submit token is valid once
// minted, so a leaked token cannot authorize live orders indefinitely.
const liveTokenTTL = 10 * time.Minute

type Surface struct {
	mu           sync.Mutex
	risk         *risk.Manager
	totpSecret   string // operator-provisioned, never logged in full
	jwtSigningKey []byte
	liveApproved bool
	paperMode    bool
}

func New(riskManager *risk.Manager, totpSecret string, jwtSigningKey []byte, startInPaperMode bool) *Surface {
	return &Surface{
		risk:          riskManager,
		totpSecret:    totpSecret,
		jwtSigningKey: jwtSigningKey,
		paperMode:     startInPaperMode,
	}
}

func (s *Surface) EnableTrading()  { /* no-op: trading is enabled by the absence of a halt; this does not clear a halt (ClearHalt does) */ }
func (s *Surface) SetPaper(paper bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paperMode = paper
}

func (s *Surface) IsPaper() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paperMode
}

func (s *Surface) ManualHalt(reason string)            { s.risk.ManualHalt(reason) }
func (s *Surface) ClearHalt()                          { s.risk.ClearHalt() }
func (s *Surface) AcknowledgeSafeMode(detail string)    { s.risk.AcknowledgeSafeMode(detail) }
func (s *Surface) UpdateRiskParams(f func(*risk.RiskParameters)) { s.risk.UpdateRiskParams(f) }

// ApproveLive opens the live-mode gate: the operator must supply a
// valid TOTP code from the provisioned secret, which sets live_approved.
// No venue adapter checks live_approved or a live token before a submit.
func (s *Surface) ApproveLive(totpCode string) error {
	ok, err := totp.ValidateCustom(totpCode, s.totpSecret, time.Now().UTC(), totp.ValidateOpts{
		Period: 30, Skew: 1, Digits: 6,
	})
	if err != nil {
		return fmt.Errorf("operator: totp validation: %w", err)
	}
	if !ok {
		return fmt.Errorf("operator: invalid totp code")
	}
	s.mu.Lock()
	s.liveApproved = true
	s.mu.Unlock()
	return nil
}

func (s *Surface) RevokeLive() {
	s.mu.Lock()
	s.liveApproved = false
	s.mu.Unlock()
}

// MintLiveToken issues a short-lived JWT with the live_submit scope.
// Returns an error if live mode has not been approved. Nothing in this
// module passes the token to a venue adapter.
func (s *Surface) MintLiveToken() (string, error) {
	s.mu.Lock()
	approved := s.liveApproved
	s.mu.Unlock()
	if !approved {
		return "", fmt.Errorf("operator: live mode not approved")
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(liveTokenTTL).Unix(),
		"scope": "live_submit",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSigningKey)
}

// VerifyLiveToken checks a token's HS256 signature, expiry and
// live_submit scope. No execution adapter calls it.
func (s *Surface) VerifyLiveToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSigningKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return fmt.Errorf("operator: invalid live token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != "live_submit" {
		return fmt.Errorf("operator: live token missing required scope")
	}
	return nil
}
