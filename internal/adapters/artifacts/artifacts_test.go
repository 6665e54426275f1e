package artifacts

import (
	"context"
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vitalsync/internal/domain/scoring"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a file store in a temp dir", t, func() {
		dir := t.TempDir()
		s, err := NewFileStore(dir)
		So(err, ShouldBeNil)

		Convey("A missing bundle reports no artifacts", func() {
			_, err := s.Get(ctx, "u1")
			So(errors.Is(err, scoring.ErrNoArtifacts), ShouldBeTrue)
		})

		Convey("Put replaces the bundle and leaves no temp files", func() {
			So(s.Put(ctx, "u1", []byte(`{"v":1}`)), ShouldBeNil)
			So(s.Put(ctx, "u1", []byte(`{"v":2}`)), ShouldBeNil)
			b, err := s.Get(ctx, "u1")
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"v":2}`)

			entries, err := os.ReadDir(dir)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Name(), ShouldEqual, "u1.json")

			Convey("Delete removes it", func() {
				So(s.Delete(ctx, "u1"), ShouldBeNil)
				_, err := s.Get(ctx, "u1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(s.Delete(ctx, "u1"), ShouldBeNil)
			})
		})

		Convey("Keys that escape the directory are rejected", func() {
			So(errors.Is(s.Put(ctx, "../evil", nil), ErrInvalidKey), ShouldBeTrue)
			_, err := s.Get(ctx, "a/b")
			So(errors.Is(err, ErrInvalidKey), ShouldBeTrue)
		})
	})
}
