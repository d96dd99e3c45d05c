package accounts

import (
	"context"

	"github.com/signal-golang/textsecure-accounts/push"
	log "github.com/sirupsen/logrus"
)

// PushTokenUploader registers push tokens with the server.
type PushTokenUploader interface {
	UpdatePushTokens(pushToken, voipToken string) error
}

// SyncPushTokensJob requests the current push tokens and uploads them.
type SyncPushTokensJob struct {
	uploader PushTokenUploader
	tokens   PushTokenSource
	store    AccountStore

	// UploadOnlyIfStale skips the upload when the tokens did not change
	// since the last upload.
	UploadOnlyIfStale bool
}

func NewSyncPushTokensJob(uploader PushTokenUploader, tokens PushTokenSource, store AccountStore) *SyncPushTokensJob {
	return &SyncPushTokensJob{
		uploader:          uploader,
		tokens:            tokens,
		store:             store,
		UploadOnlyIfStale: true,
	}
}

func (j *SyncPushTokensJob) Run(ctx context.Context) error {
	log.Infoln("[textsecure] SyncPushTokensJob starting")
	pair, err := j.tokens.RequestPushTokens(ctx)
	if err != nil {
		return err
	}
	if j.UploadOnlyIfStale && pair == j.store.LastUploadedPushTokens() {
		log.Infoln("[textsecure] push tokens are up to date, skipping upload")
		return nil
	}
	if err := j.uploader.UpdatePushTokens(pair.PushToken, pair.VoipToken); err != nil {
		return err
	}
	log.Infoln("[textsecure] uploaded push tokens")
	return j.store.SetLastUploadedPushTokens(pair)
}

var _ PushTokenSource = (*push.Registrar)(nil)
