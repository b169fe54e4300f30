package rabbitmq

import (
	"net"
	"net/url"
	"strconv"
)

// URL builds an amqp:// URL from its parts. The vhost is path-escaped, so
// the default "/" becomes "%2F".
func URL(host string, port int, user, pass, vhost string) string {
	u := url.URL{
		Scheme:  "amqp",
		User:    url.UserPassword(user, pass),
		Host:    net.JoinHostPort(host, strconv.Itoa(port)),
		Path:    "/" + vhost,
		RawPath: "/" + url.PathEscape(vhost),
	}

	return u.String()
}
