package gateway

import (
	"testing"
	"time"
)

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"longpoll": {Running: true}}}
	if svc.isReady() {
		t.Fatal("expected not ready before the first successful api probe")
	}

	svc.apiLastOKAt = time.Now().UTC()
	if !svc.isReady() {
		t.Fatal("expected ready with a running channel and a healthy api")
	}

	svc.apiLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready while the api probe is failing")
	}

	svc.apiLastErr = ""
	svc.channelStates["longpoll"] = channelState{Running: false, Error: "gone"}
	if svc.isReady() {
		t.Fatal("expected not ready with no running channel")
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	if errorString(nil) != "" {
		t.Fatal("want empty string for nil error")
	}
}
