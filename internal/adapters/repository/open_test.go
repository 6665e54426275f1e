package repository

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vitalsync/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	Convey("The memory driver needs no DSN", t, func() {
		s, err := Open(ctx, config.StoreConfig{Driver: "memory"})
		So(err, ShouldBeNil)
		So(s, ShouldHaveSameTypeAs, &MemoryStore{})
		So(s.Close(), ShouldBeNil)
	})

	Convey("Unknown drivers are rejected", t, func() {
		_, err := Open(ctx, config.StoreConfig{Driver: "sqlite"})
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}
