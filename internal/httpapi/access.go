package httpapi

import (
	"net"
	"net/http"
	"strconv"
)

// accessList classifies a remote IP against CIDR allow-lists. Loopback is
// always implicitly allowed; everything else must match an entry in one
// of the two lists.
type accessList struct {
	read  []*net.IPNet
	write []*net.IPNet
}

func newAccessList(allow, allowWrite []string) (*accessList, error) {
	read, err := parseCIDRs(allow)
	if err != nil {
		return nil, err
	}
	write, err := parseCIDRs(allowWrite)
	if err != nil {
		return nil, err
	}
	return &accessList{read: read, write: write}, nil
}

func parseCIDRs(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			if ip := net.ParseIP(e); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				_, n, err = net.ParseCIDR(ip.String() + "/" + strconv.Itoa(bits))
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func (a *accessList) canRead(ip net.IP) bool {
	return ip.IsLoopback() || containsIP(a.read, ip) || containsIP(a.write, ip)
}

func (a *accessList) canWrite(ip net.IP) bool {
	return ip.IsLoopback() || containsIP(a.write, ip)
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

var readOnlyMethods = map[string]bool{
	http.MethodGet:  true,
	http.MethodHead: true,
}

// accessMiddleware classifies the remote IP before the request reaches
// routing: unlisted remotes get 403, remotes without write access get 403
// on any mutating method.
func (s *Server) accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r)
		if ip == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !s.access.canRead(ip) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !readOnlyMethods[r.Method] && !s.access.canWrite(ip) {
			http.Error(w, "forbidden: read-only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
