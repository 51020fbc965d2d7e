package config

import (
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	Convey("Config Load", t, func() {
		viper.Reset()

		Convey("Should populate engine defaults", func() {
			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.Engine, ShouldResemble, Defaults())
			So(cfg.Server.Addr, ShouldEqual, ":8080")
		})

		Convey("Should read overrides from the environment", func() {
			os.Setenv("TVCONTROL_ENGINE_CONTENT_RATIO", "90")
			os.Setenv("TVCONTROL_CHANNEL_ACCOUNT_ID", "acct-1")
			defer os.Unsetenv("TVCONTROL_ENGINE_CONTENT_RATIO")
			defer os.Unsetenv("TVCONTROL_CHANNEL_ACCOUNT_ID")

			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.Engine.ContentRatio, ShouldEqual, 90.0)
			So(cfg.Channel.AccountID, ShouldEqual, "acct-1")
		})

		Convey("Should register every engine default under its config key", func() {
			d := Defaults()
			So(Default["engine.ad_duration"], ShouldEqual, d.AdDuration)
			So(Default["engine.content_ratio"], ShouldEqual, d.ContentRatio)
			So(Default["engine.ad_batch_size"], ShouldEqual, d.AdBatchSize)
			So(Default["engine.jukebox_cooldown"], ShouldEqual, d.JukeboxCooldown)
			So(Default["engine.request_timeout"], ShouldEqual, d.RequestTimeout)
			So(len(Default), ShouldEqual, 6+13)
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			So(EnvKeyReplacer.Replace("engine.ad_duration"), ShouldEqual, "engine_ad_duration")
		})
	})
}

func TestNormalized(t *testing.T) {
	Convey("Out of range values fall back to defaults", t, func() {
		e := Engine{ContentRatio: 150, AdDuration: -time.Second}
		n := e.normalized()
		So(n.ContentRatio, ShouldEqual, 70.0)
		So(n.AdDuration, ShouldEqual, 15*time.Second)
		So(n.WatchdogThreshold, ShouldEqual, 45*time.Second)
	})

	Convey("A zero content ratio is a valid setting", t, func() {
		n := Engine{ContentRatio: 0}.normalized()
		So(n.ContentRatio, ShouldEqual, 0.0)
	})
}
