package transport

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// AuthCredentials holds a username and password pair handed out by the server
type AuthCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AsBasic renders the credentials as an HTTP basic Authorization value
func (a *AuthCredentials) AsBasic() string {
	usernameAndPassword := a.Username + ":" + a.Password
	dec := charmap.Windows1250.NewDecoder()
	out, _ := dec.String(usernameAndPassword)
	encoded := base64.StdEncoding.EncodeToString([]byte(out))
	return "Basic " + encoded
}

// DecodeCredentials reads AuthCredentials from a JSON body
func DecodeCredentials(b []byte) (*AuthCredentials, error) {
	var a AuthCredentials
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(err, "decode credentials")
	}
	return &a, nil
}
