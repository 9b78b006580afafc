// Copyright 2020 Wearless Tech Inc All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	cfg "github.com/chryscloud/go-microkit-plugins/config"
	msrv "github.com/chryscloud/go-microkit-plugins/server"
	badger "github.com/dgraph-io/badger/v2"
	qtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v7"
	g "github.com/univision/camera-relay/globals"
	r "github.com/univision/camera-relay/router"
	"github.com/univision/camera-relay/services"
)

var (
	defaultConfPath = "/data/camrelay/conf.yaml"
)

// setup local badger datastore
func setupDB(path string) (*badger.DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		errDir := os.MkdirAll(path, os.ModePerm)
		if errDir != nil {
			g.Log.Error("failed to create directiory for DB", path, errDir)
			return nil, errDir
		}
	}
	db, err := badger.Open(badger.DefaultOptions(filepath.Join(path, "db")))
	if err != nil {
		g.Log.Error("failed to open database", err)
		return nil, err
	}
	return db, nil
}

func loadConfig() g.Config {
	confPath := defaultConfPath
	if p := os.Getenv("CAMRELAY_CONF"); p != "" {
		confPath = p
	}

	var conf g.Config
	if _, err := os.Stat(confPath); os.IsNotExist(err) {
		conf = g.Config{
			YamlConfig: cfg.YamlConfig{
				Port: 8080,
				Mode: gin.ReleaseMode,
			},
		}
	} else {
		err := cfg.NewYamlConfig(confPath, &conf)
		if err != nil {
			g.Log.Error(err, "conf.yaml failed to load")
			panic("Failed to load conf.yaml")
		}
	}
	conf.ApplyDefaults()
	return conf
}

func setupNotifiers(conf g.Config) (services.Notifier, func()) {
	notifiers := services.MultiNotifier{}
	closers := make([]func(), 0)

	if conf.Redis.Connection != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Connection,
			Password: conf.Redis.Password,
			DB:       conf.Redis.Database,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			g.Log.Warn("redis not reachable, sync events will be dropped until it is", err)
		}
		notifiers = append(notifiers, services.NewRedisNotifier(rdb, conf.Redis.Channel))
		closers = append(closers, func() { rdb.Close() })
	}

	if conf.MQTT.Broker != "" {
		opts := qtt.NewClientOptions().
			AddBroker(conf.MQTT.Broker).
			SetClientID(conf.MQTT.ClientID).
			SetAutoReconnect(true)
		client := qtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			g.Log.Warn("mqtt broker not reachable, retrying in background", token.Error())
		}
		notifiers = append(notifiers, services.NewMQTTNotifier(client, conf.MQTT.Topic))
		closers = append(closers, func() { client.Disconnect(250) })
	}

	return notifiers, func() {
		for _, c := range closers {
			c()
		}
	}
}

func main() {
	// server wait to shutdown monitoring channels
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)

	conf := loadConfig()
	g.Conf = conf

	signal.Notify(quit, os.Interrupt)
	defer signal.Stop(quit)

	db, err := setupDB(conf.DataPath)
	if err != nil {
		g.Log.Error("failed to init database", err)
		os.Exit(1)
	}
	defer db.Close()

	notifier, closeNotifiers := setupNotifiers(conf)
	defer closeNotifiers()

	// Storage
	storage := services.NewStorage(db)

	// Services
	control := services.NewControlClient(conf.MediaMTX)
	builder := services.NewCommandBuilder(conf.Relay)
	reconciler := services.NewReconciler(builder, control, notifier)
	cameraService := services.NewCameraManager(storage, reconciler)
	prober := services.NewProber(conf.Relay, cameraService)
	sweeper := services.NewSweeper(cameraService, control, prober, conf.Sweep)

	if !control.IsHealthy(context.Background()) {
		g.Log.Warn("streaming server control api is not reachable", conf.MediaMTX.Host, conf.MediaMTX.Port)
	}
	if conf.Sweep.OnStartup {
		go func() {
			if _, err := sweeper.InitializeAll(context.Background()); err != nil {
				g.Log.Error("startup stream initialization failed", err)
			}
		}()
	}

	jobs, err := StartCronJobs(conf, sweeper)
	if err != nil {
		g.Log.Error("failed to start cron jobs", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	gin.SetMode(conf.Mode)

	router := msrv.NewAPIRouter(&conf.YamlConfig)
	router = r.ConfigAPI(router, cameraService, reconciler, control, prober, sweeper)

	// start server
	srv := msrv.Start(&conf.YamlConfig, router, g.Log)
	// wait for server shutdown
	go msrv.Shutdown(srv, g.Log, quit, done)

	g.Log.Info("Server is ready to handle requests at", conf.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		g.Log.Error("Could not listen on", conf.Port, err)
	}

	<-done
	g.Log.Info("exit")
}
