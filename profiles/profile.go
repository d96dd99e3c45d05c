package profiles

import (
	"fmt"

	"github.com/signal-golang/textsecure-accounts/helpers"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	PROFILE_PATH = "/v1/profile/%s"

	// identityKeyLength is the wire length of an identity key including its
	// leading type byte.
	identityKeyLength = 33
)

// SignalServiceProfile is the validated public profile of a recipient.
type SignalServiceProfile struct {
	RecipientID string
	// IdentityKey is the 32 byte public key with the type byte removed.
	IdentityKey          []byte
	ProfileNameEncrypted []byte
	AvatarURLPath        string
}

// decodeProfile validates a raw profile response. It either returns a
// complete profile or a ValidationError.
func decodeProfile(recipientID string, raw []byte) (*SignalServiceProfile, error) {
	resp := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, resp); err != nil {
		return nil, ValidationError{
			Kind:        Invalid,
			Description: fmt.Sprintf("unexpected response: %q", raw),
		}
	}
	fields := resp.GetFields()

	identityKeyString, ok := stringField(fields, "identityKey")
	if !ok {
		return nil, ValidationError{
			Kind:        InvalidIdentityKey,
			Description: fmt.Sprintf("missing identity key: %q", raw),
		}
	}
	identityKeyWithType, err := helpers.Base64DecodeNonPadded(identityKeyString)
	if err != nil {
		return nil, ValidationError{
			Kind:        InvalidIdentityKey,
			Description: fmt.Sprintf("unable to parse identity key: %s", identityKeyString),
		}
	}
	if len(identityKeyWithType) != identityKeyLength {
		return nil, ValidationError{
			Kind:        InvalidIdentityKey,
			Description: fmt.Sprintf("malformed key %s with decoded length: %d", identityKeyString, len(identityKeyWithType)),
		}
	}

	profile := &SignalServiceProfile{
		RecipientID: recipientID,
		IdentityKey: identityKeyWithType[1:],
	}
	if name, ok := stringField(fields, "name"); ok {
		profile.ProfileNameEncrypted, err = helpers.Base64DecodeNonPadded(name)
		if err != nil {
			return nil, ValidationError{
				Kind:        InvalidProfileName,
				Description: fmt.Sprintf("unable to parse profile name: %s", name),
			}
		}
	}
	if avatar, ok := stringField(fields, "avatar"); ok {
		profile.AvatarURLPath = avatar
	}
	return profile, nil
}

// stringField returns a field that holds a string. Absent, null and non
// string values are all reported as missing.
func stringField(fields map[string]*structpb.Value, name string) (string, bool) {
	v, ok := fields[name]
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}
