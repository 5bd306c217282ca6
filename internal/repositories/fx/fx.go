package fx

import (
	"github.com/rameshsd/onlycreation-stories/internal/repositories/profile"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/story"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/view"
	"go.uber.org/fx"
)

var Module = fx.Options(
	story.Module,
	profile.Module,
	view.Module,
)
