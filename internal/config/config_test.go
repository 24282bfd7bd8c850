package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/turnover/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Model.Registry, convey.ShouldEqual, "hub")
			convey.So(cfg.Model.HubEndpoint, convey.ShouldEqual, "https://huggingface.co")
			convey.So(cfg.Model.RepoID, convey.ShouldEqual, "IamPradeep/Employee-Churn-Predictor")
			convey.So(cfg.Model.Revision, convey.ShouldEqual, "main")
			convey.So(cfg.Model.FetchTimeout, convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.Model.EagerLoad, convey.ShouldBeTrue)
			convey.So(cfg.Model.RequestLoadTimeout, convey.ShouldBeLessThan, cfg.WriteTimeout)
			convey.So(cfg.Model.WarmInterval, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.Metrics.Enabled, convey.ShouldBeTrue)
			convey.So(cfg.Metrics.RefreshInterval, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with missing or bad settings", t, func() {
		broken := []func(c *config.Config){
			func(c *config.Config) { c.Addr = " " },
			func(c *config.Config) { c.LogFormat = "xml" },
			func(c *config.Config) { c.Model.Registry = "ftp" },
			func(c *config.Config) { c.Model.RepoID = "" },
			func(c *config.Config) { c.Model.Filename = "" },
			func(c *config.Config) { c.Model.FetchTimeout = 0 },
			func(c *config.Config) { c.Model.Registry = "gcs" },
			func(c *config.Config) { c.Model.Registry = "s3"; c.Model.Bucket = "models" },
			func(c *config.Config) { c.Model.Registry = "file" },
			func(c *config.Config) { c.ShutdownTimeout = -time.Second },
			func(c *config.Config) { c.WriteTimeout = 0 },
			func(c *config.Config) { c.Model.RequestLoadTimeout = 0 },
			func(c *config.Config) { c.Model.RequestLoadTimeout = c.WriteTimeout },
			func(c *config.Config) { c.Model.WarmInterval = 0 },
			func(c *config.Config) { c.Metrics.RefreshInterval = 0 },
		}

		convey.Convey("Then each is rejected with ErrInvalidConfig", func() {
			for _, mutate := range broken {
				cfg := config.New()
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("And the registry name is normalised", func() {
			cfg := config.New()
			cfg.Model.Registry = " S3 "
			cfg.Model.Bucket = "models"
			cfg.Model.Region = "eu-west-1"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.Model.Registry, convey.ShouldEqual, "s3")
		})
	})
}
