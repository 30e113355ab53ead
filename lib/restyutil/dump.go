// Package restyutil keeps copies of the HTTP exchanges of a resty client,
// which is how device pages are captured when their markup changes.
package restyutil

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpMessages writes every completed exchange of client to output, named
// by a running counter and the request path. A nil output is a no-op.
func DumpMessages(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&counter, 1)
		output.Write(messageID(id, res.Request.URL), FormatMessage(res))
		return nil
	})
}

func messageID(id uint64, url string) string {
	name := url
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.NewReplacer("/", "_", "?", "_", "&", "_").Replace(name)
	if name == "" {
		name = "index"
	}
	return fmt.Sprintf("%04d_%s.txt", id, name)
}
