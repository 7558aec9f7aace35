// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"context"

	"github.com/TEENet-io/bridge-client-aptos/httpclient"
	"github.com/cockroachdb/errors"
)

type HttpReader struct {
	client *httpclient.Client
}

func NewHttpReader(serverIP string, serverPort string) (*HttpReader, error) {
	client, err := httpclient.New("http://" + serverIP + ":" + serverPort)
	if err != nil {
		return nil, err
	}
	return &HttpReader{client: client}, nil
}

func (hr *HttpReader) GetHello(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := hr.client.GetJSON(ctx, ROUTE_HELLO, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (hr *HttpReader) GetStatus(ctx context.Context) ([]MonitorStatus, error) {
	var out []MonitorStatus
	if err := hr.client.GetJSON(ctx, ROUTE_STATUS, nil, &out); err != nil {
		return nil, errors.Wrap(err, "get status")
	}
	return out, nil
}

func (hr *HttpReader) GetSourceStatus(ctx context.Context, source string) (*MonitorStatus, error) {
	var out MonitorStatus
	if err := hr.client.GetJSON(ctx, ROUTE_STATUS+"/"+source, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "get status of %s", source)
	}
	return &out, nil
}
