// Copyright (c) 2014 Canonical Ltd.
// Copyright (c) 2020 Aaron Kimmig
// Licensed under the GPLv3, see the COPYING file for details.

package accounts

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/signal-golang/textsecure-accounts/transport"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	log "github.com/sirupsen/logrus"
)

var (
	VERIFY_ACCOUNT_CODE_PATH = "/v1/accounts/code/%s"
	APN_ACCOUNT_PATH         = "/v1/accounts/apn/"
	TURN_SERVER_INFO         = "/v1/accounts/turn"
	SET_ACCOUNT_ATTRIBUTES   = "/v1/accounts/attributes/"
)

// ErrUnableToProcessServerResponse is returned for a reply that does not
// have the expected shape.
var ErrUnableToProcessServerResponse = errors.New("unable to process server response")

// AccountAttributes describes what features are supported
type AccountAttributes struct {
	SignalingKey    string `json:"signalingKey" yaml:"signalingKey"`
	FetchesMessages bool   `json:"fetchesMessages" yaml:"fetchesMessages"`
	RegistrationID  uint32 `json:"registrationId" yaml:"registrationId"`
	Name            string `json:"name" yaml:"name"`
	Video           bool   `json:"video" yaml:"video"`
	Voice           bool   `json:"voice" yaml:"voice"`
}

type pushTokens struct {
	ApnRegistrationID  string `json:"apnRegistrationId"`
	VoipRegistrationID string `json:"voipRegistrationId"`
}

type verifyResponse struct {
	UUID string `json:"uuid"`
}

// RegistrationLockError is returned when the number is protected by a
// registration lock.
type RegistrationLockError struct {
	TimeRemaining uint32
	Credentials   *transport.AuthCredentials
}

func (e *RegistrationLockError) Error() string {
	return fmt.Sprintf("registration lock, time remaining %d", e.TimeRemaining)
}

type registrationLockFailure struct {
	TimeRemaining uint32          `json:"timeRemaining"`
	Credentials   json.RawMessage `json:"backupCredentials"`
}

func (am *AccountManager) accountAttributes(fetchesMessages bool) AccountAttributes {
	info := am.store.RegistrationInfo()
	return AccountAttributes{
		SignalingKey:    base64.StdEncoding.EncodeToString(info.SignalingKey),
		RegistrationID:  info.RegistrationID,
		FetchesMessages: fetchesMessages,
		Name:            am.store.Name(),
		Voice:           true,
		Video:           true,
	}
}

// verifyCode verificates the account with signal server
func (am *AccountManager) verifyCode(code string) error {
	code = strings.Replace(code, "-", "", -1)
	vd := am.accountAttributes(false)
	body, err := json.Marshal(vd)
	if err != nil {
		return err
	}
	resp, err := am.transport.PutJSON(fmt.Sprintf(VERIFY_ACCOUNT_CODE_PATH, code), body)
	if err != nil {
		log.Errorln("[textsecure] verifyCode", err)
		return errors.Wrap(err, "verify account")
	}
	b, err := resp.ReadAll()
	if err != nil {
		return errors.Wrap(err, "verify account")
	}
	if resp.IsError() {
		if resp.Status == 423 {
			log.Errorln("[textsecure] verifyCode", string(b))
			return registrationLockError(b)
		}
		return resp
	}

	// extract uuid
	if len(b) > 0 {
		v := verifyResponse{}
		if err := json.Unmarshal(b, &v); err != nil {
			log.Debugln("[textsecure] verifyCode could not decode response", err)
		} else if v.UUID != "" {
			if err := am.store.SetUUID(v.UUID); err != nil {
				return err
			}
		}
	}
	return nil
}

func registrationLockError(b []byte) error {
	v := registrationLockFailure{}
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Wrap(err, "decode registration lock failure")
	}
	lockErr := &RegistrationLockError{TimeRemaining: v.TimeRemaining}
	if len(v.Credentials) > 0 {
		credentials, err := transport.DecodeCredentials(v.Credentials)
		if err != nil {
			return err
		}
		lockErr.Credentials = credentials
	}
	return lockErr
}

// UpdatePushTokens uploads the hex encoded push tokens.
func (am *AccountManager) UpdatePushTokens(pushToken, voipToken string) error {
	log.Infoln("[textsecure] UpdatePushTokens")
	body, err := json.Marshal(pushTokens{
		ApnRegistrationID:  pushToken,
		VoipRegistrationID: voipToken,
	})
	if err != nil {
		return err
	}
	resp, err := am.transport.PutJSON(APN_ACCOUNT_PATH, body)
	if err != nil {
		return errors.Wrap(err, "register push tokens")
	}
	resp.ReadAll()
	if resp.IsError() {
		return resp
	}
	return nil
}

// RegisterForManualMessageFetching removes the push registration and tells
// the server that the client polls for messages.
func (am *AccountManager) RegisterForManualMessageFetching() error {
	log.Infoln("[textsecure] RegisterForManualMessageFetching")
	resp, err := am.transport.Del(APN_ACCOUNT_PATH)
	if err != nil {
		return errors.Wrap(err, "unregister push tokens")
	}
	resp.ReadAll()
	// the account may never have had push tokens
	if resp.IsError() && resp.Status != 404 {
		return resp
	}

	body, err := json.Marshal(am.accountAttributes(true))
	if err != nil {
		return err
	}
	resp, err = am.transport.PutJSON(SET_ACCOUNT_ATTRIBUTES, body)
	if err != nil {
		return errors.Wrap(err, "set account attributes")
	}
	resp.ReadAll()
	if resp.IsError() {
		return resp
	}
	return am.store.SetFetchesMessages(true)
}

// TurnServerInfo holds the credentials for the call relay servers.
type TurnServerInfo struct {
	Username string
	Password string
	URLs     []string
}

// GetTurnServerInfo fetches the TURN server credentials.
func (am *AccountManager) GetTurnServerInfo() (*TurnServerInfo, error) {
	resp, err := am.transport.Get(TURN_SERVER_INFO)
	if err != nil {
		return nil, errors.Wrap(err, "get turn server info")
	}
	b, err := resp.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "get turn server info")
	}
	if resp.IsError() {
		return nil, resp
	}
	info, err := decodeTurnServerInfo(b)
	if err != nil {
		log.Errorf("[textsecure] unexpected server response: %s", b)
		return nil, err
	}
	return info, nil
}

func decodeTurnServerInfo(b []byte) (*TurnServerInfo, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, ErrUnableToProcessServerResponse
	}
	fields := s.GetFields()
	username, ok := fields["username"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, ErrUnableToProcessServerResponse
	}
	password, ok := fields["password"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, ErrUnableToProcessServerResponse
	}
	urls, ok := fields["urls"].GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, ErrUnableToProcessServerResponse
	}
	info := &TurnServerInfo{
		Username: username.StringValue,
		Password: password.StringValue,
	}
	for _, v := range urls.ListValue.GetValues() {
		u, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, ErrUnableToProcessServerResponse
		}
		info.URLs = append(info.URLs, u.StringValue)
	}
	return info, nil
}
