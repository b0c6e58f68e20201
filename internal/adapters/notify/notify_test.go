package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/logger"
)

func sample() model.Event {
	return model.Event{EventID: "evt-1", Kind: model.EventRecordSubmitted, RecordID: 3, Summary: "record 3 submitted"}
}

func TestWebhook(t *testing.T) {
	Convey("Given a webhook endpoint", t, func() {
		ctx := context.Background()
		var hits atomic.Int32
		var failFirst atomic.Int32
		status := http.StatusNoContent
		var got model.Event
		var key string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if failFirst.Load() > 0 {
				failFirst.Add(-1)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			key = r.Header.Get("Idempotency-Key")
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(status)
		}))
		defer srv.Close()

		hook, err := NewWebhook(srv.URL, WithBackoff(time.Millisecond, 5*time.Millisecond), WithMaxTries(3))
		So(err, ShouldBeNil)

		Convey("When the endpoint accepts", func() {
			err := hook.Notify(ctx, sample())

			Convey("Then the event is posted once as JSON", func() {
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, int32(1))
				So(got.EventID, ShouldEqual, "evt-1")
				So(got.Kind, ShouldEqual, model.EventRecordSubmitted)
				So(key, ShouldEqual, "evt-1")
			})
		})

		Convey("When the endpoint fails transiently", func() {
			failFirst.Store(2)
			err := hook.Notify(ctx, sample())

			Convey("Then delivery is retried until it succeeds", func() {
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, int32(3))
			})
		})

		Convey("When the endpoint keeps failing", func() {
			failFirst.Store(10)
			err := hook.Notify(ctx, sample())

			Convey("Then it gives up after the configured tries", func() {
				So(errors.Is(err, ErrRejected), ShouldBeTrue)
				So(hits.Load(), ShouldEqual, int32(3))
			})
		})

		Convey("When the endpoint rejects the payload", func() {
			status = http.StatusBadRequest
			err := hook.Notify(ctx, sample())

			Convey("Then it is not retried", func() {
				So(errors.Is(err, ErrRejected), ShouldBeTrue)
				So(hits.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given notifier selection", t, func() {
		Convey("When nothing is configured", func() {
			n, err := New("", "", logger.Nop())
			So(err, ShouldBeNil)
			_, isLog := n.(*Log)
			So(isLog, ShouldBeTrue)
			So(n.Notify(context.Background(), sample()), ShouldBeNil)
		})

		Convey("When only a url is configured", func() {
			n, err := New("", "http://127.0.0.1:1/hook", nil)
			So(err, ShouldBeNil)
			_, isHook := n.(*Webhook)
			So(isHook, ShouldBeTrue)
		})

		Convey("When the webhook has no url", func() {
			_, err := New(KindWebhook, " ", nil)
			So(errors.Is(err, ErrEmptyURL), ShouldBeTrue)
		})

		Convey("When the kind is unknown", func() {
			_, err := New("pigeon", "", nil)
			So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
		})
	})
}
