package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-dev/nocturne-auth/api"
	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/internal/metrics"
	"github.com/nocturne-dev/nocturne-auth/scopes"
)

// Constants for the device authorization flow (RFC 8628).
const (
	deviceCodeLength   = 32 // bytes of entropy in the opaque device_code
	userCodeLength     = 8
	userCodeChunkSize  = 4
	deviceCodeLifetime = 10 * time.Minute
	defaultPollInterval = 5 // seconds

	// userCodeCharset excludes vowels and the characters easily confused
	// with them (0/O, 1/I) so codes are unambiguous when read aloud or
	// typed from a TV screen.
	userCodeCharset = "BCDFGHJKLMNPQRSTVWXYZ23456789"
)

// ErrDeviceCodeProcessed is returned when approving or denying a device code
// that is expired or already settled. Approval and denial are each terminal.
var ErrDeviceCodeProcessed = errors.New("device code already processed or expired")

// NormalizeUserCode maps a user-typed code to its storage form: uppercase
// with hyphens and spaces stripped, so lookups are case- and
// punctuation-insensitive.
func NormalizeUserCode(code string) string {
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// FormatUserCode renders a normalized user code for display as two
// four-character groups.
func FormatUserCode(code string) string {
	if len(code) <= userCodeChunkSize {
		return code
	}
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		if i > 0 && i%userCodeChunkSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(code[i])
	}
	return b.String()
}

// generateUserCode draws a short human code from the unambiguous alphabet.
func generateUserCode() (string, error) {
	b := make([]byte, userCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate user code: %w", err)
	}
	for i := range b {
		b[i] = userCodeCharset[int(b[i])%len(userCodeCharset)]
	}
	return string(b), nil
}

// DeviceCodeService issues device authorization requests and manages their
// pending → approved | denied lifecycle. Expiry is detected lazily at poll
// and lookup time, never by a background sweep.
type DeviceCodeService struct {
	deviceCodes     domain.DeviceCodeRepository
	clients         *ClientService
	grants          *GrantService
	tx              domain.Transactor
	verificationURI string
}

// NewDeviceCodeService creates a new DeviceCodeService instance.
// verificationURI is the page the user is told to visit and type the code
// into.
func NewDeviceCodeService(deviceCodes domain.DeviceCodeRepository, clients *ClientService, grants *GrantService, tx domain.Transactor, verificationURI string) *DeviceCodeService {
	return &DeviceCodeService{deviceCodes: deviceCodes, clients: clients, grants: grants, tx: tx, verificationURI: verificationURI}
}

// CreateDeviceCode starts a device authorization request for the client. The
// opaque device code is stored hashed; the user code normalized.
func (s *DeviceCodeService) CreateDeviceCode(ctx context.Context, clientID, clientName string, requested []string) (*api.DeviceAuthorizationResponse, error) {
	client, err := s.clients.FindOrCreate(ctx, clientID, clientName)
	if err != nil {
		return nil, err
	}

	deviceCode, err := generateOpaqueSecret(deviceCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}
	userCode, err := generateUserCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user code: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.DeviceCode{
		ID:             uuid.NewString(),
		DeviceCodeHash: HashSecret(deviceCode),
		UserCode:       userCode,
		ClientID:       client.ID,
		Scopes:         scopes.Normalize(requested),
		Status:         domain.DeviceCodeStatusPending,
		Interval:       defaultPollInterval,
		ExpiresAt:      now.Add(deviceCodeLifetime),
		CreatedAt:      now,
	}
	if err := s.deviceCodes.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save device authorization request: %w", err)
	}

	metrics.DeviceCodesCreatedTotal.Inc()
	log.Debug().Str("client_id", clientID).Str("user_code", userCode).Msg("device authorization created")

	return &api.DeviceAuthorizationResponse{
		DeviceCode:      deviceCode,
		UserCode:        FormatUserCode(userCode),
		VerificationURI: s.verificationURI,
		ExpiresIn:       int(deviceCodeLifetime.Seconds()),
		Interval:        defaultPollInterval,
	}, nil
}

// GetByUserCode returns the consent-page view of a device authorization, or
// errors.ErrNotFound when no record matches the (normalized) user code.
func (s *DeviceCodeService) GetByUserCode(ctx context.Context, userCode string) (*api.DeviceCodeInfo, error) {
	record, err := s.deviceCodes.FindByUserCode(ctx, NormalizeUserCode(userCode))
	if err != nil {
		return nil, err
	}

	clientName := ""
	if client, err := s.clients.GetByID(ctx, record.ClientID); err == nil {
		clientName = client.Name
	}

	return &api.DeviceCodeInfo{
		ClientName: clientName,
		Scopes:     record.Scopes,
		Expired:    record.Expired(time.Now().UTC()),
		Approved:   record.Status == domain.DeviceCodeStatusApproved,
		Denied:     record.Status == domain.DeviceCodeStatusDenied,
	}, nil
}

// ApproveDeviceCode approves a pending device authorization: it creates or
// updates the grant for (client, subject) and links grant and subject onto
// the record, atomically. Expired or already-settled codes are a no-op
// failure.
func (s *DeviceCodeService) ApproveDeviceCode(ctx context.Context, userCode, subjectID string) error {
	if subjectID == "" {
		return serrors.NewValidationError("subject id must not be empty")
	}

	record, err := s.deviceCodes.FindByUserCode(ctx, NormalizeUserCode(userCode))
	if err != nil {
		return err
	}
	if record.Status != domain.DeviceCodeStatusPending || record.Expired(time.Now().UTC()) {
		return ErrDeviceCodeProcessed
	}

	now := time.Now().UTC()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		grant, err := s.grants.CreateOrUpdateGrant(ctx, record.ClientID, subjectID, record.Scopes, "")
		if err != nil {
			return err
		}
		record.Status = domain.DeviceCodeStatusApproved
		record.ApprovedAt = &now
		record.GrantID = grant.ID
		record.SubjectID = subjectID
		return s.deviceCodes.Update(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("failed to approve device authorization: %w", err)
	}

	metrics.DeviceCodesApprovedTotal.Inc()
	log.Info().Str("user_code", record.UserCode).Str("subject_id", subjectID).Msg("device authorization approved")

	return nil
}

// DenyDeviceCode denies a pending device authorization. Terminal; expired or
// already-settled codes are a no-op failure.
func (s *DeviceCodeService) DenyDeviceCode(ctx context.Context, userCode string) error {
	record, err := s.deviceCodes.FindByUserCode(ctx, NormalizeUserCode(userCode))
	if err != nil {
		return err
	}
	if record.Status != domain.DeviceCodeStatusPending || record.Expired(time.Now().UTC()) {
		return ErrDeviceCodeProcessed
	}

	now := time.Now().UTC()
	record.Status = domain.DeviceCodeStatusDenied
	record.DeniedAt = &now
	if err := s.deviceCodes.Update(ctx, record); err != nil {
		return fmt.Errorf("failed to deny device authorization: %w", err)
	}

	metrics.DeviceCodesDeniedTotal.Inc()
	log.Info().Str("user_code", record.UserCode).Msg("device authorization denied")

	return nil
}
