package permissions_test

import (
	"testing"

	"github.com/okian/demonlist/internal/domain/permissions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHasCapability(t *testing.T) {
	Convey("Given identities with different permission sets", t, func() {
		admin := permissions.Identity{UserID: 1, Permissions: permissions.NewSet(permissions.ListAdministrator)}
		helper := permissions.Identity{UserID: 2, Permissions: permissions.NewSet(permissions.ListHelper)}
		staff := permissions.Identity{UserID: 3, Permissions: permissions.NewSet(permissions.Administrator)}

		Convey("Then list administrators hold every lower list capability", func() {
			So(permissions.HasCapability(admin, permissions.ListAdministrator), ShouldBeTrue)
			So(permissions.HasCapability(admin, permissions.ListModerator), ShouldBeTrue)
			So(permissions.HasCapability(admin, permissions.ListHelper), ShouldBeTrue)
			So(permissions.HasCapability(admin, permissions.Moderator), ShouldBeFalse)
		})

		Convey("And helpers hold nothing above helper", func() {
			So(permissions.HasCapability(helper, permissions.ListHelper), ShouldBeTrue)
			So(permissions.HasCapability(helper, permissions.ListAdministrator), ShouldBeFalse)
		})

		Convey("And site administrators are not list staff by implication", func() {
			So(permissions.HasCapability(staff, permissions.Moderator), ShouldBeTrue)
			So(permissions.HasCapability(staff, permissions.ListHelper), ShouldBeFalse)
		})

		Convey("And anonymous requesters hold nothing", func() {
			So(permissions.Anonymous.IsAnonymous(), ShouldBeTrue)
			So(permissions.Default.HasCapability(permissions.Anonymous, permissions.ListHelper), ShouldBeFalse)
		})
	})
}

func TestParseSet(t *testing.T) {
	Convey("Given a comma separated capability list", t, func() {
		s, ok := permissions.ParseSet("list_helper, List_Moderator")

		Convey("Then it parses into a set", func() {
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, permissions.NewSet(permissions.ListHelper, permissions.ListModerator))
			So(s.Names(), ShouldResemble, []string{"list_helper", "list_moderator"})
		})

		Convey("And unknown names are rejected", func() {
			_, ok := permissions.ParseSet("list_helper,wizard")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given capability names", t, func() {
		So(permissions.ListAdministrator.String(), ShouldEqual, "list_administrator")
		So(permissions.Capability(0x100).String(), ShouldEqual, "unknown")
	})
}
