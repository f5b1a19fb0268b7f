// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/pioreactor/pioreactorui-leader/internal/applog"
	"github.com/pioreactor/pioreactorui-leader/internal/bus"
	"github.com/pioreactor/pioreactorui-leader/internal/cache"
	"github.com/pioreactor/pioreactorui-leader/internal/calibration"
	"github.com/pioreactor/pioreactorui-leader/internal/config"
	"github.com/pioreactor/pioreactorui-leader/internal/domain"
	"github.com/pioreactor/pioreactorui-leader/internal/leaderapi"
	"github.com/pioreactor/pioreactorui-leader/internal/store"
	"github.com/pioreactor/pioreactorui-leader/internal/taskengine"
	"github.com/pioreactor/pioreactorui-leader/internal/unitapi"
	"github.com/pioreactor/pioreactorui-leader/internal/workerrpc"
	"github.com/pioreactor/pioreactorui-leader/pkg/log"
	"github.com/pioreactor/pioreactorui-leader/pkg/runtimeEnv"
)

const taskWorkerCount = 4

func main() {
	var flagConfigFile, flagUnit, flagUser, flagGroup string
	var flagIsLeader bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the global config options by those specified in `config.json`")
	flag.StringVar(&flagUnit, "unit", "leader", "This node's Pioreactor unit name")
	flag.BoolVar(&flagIsLeader, "leader", true, "Whether this node is the cluster leader (only the leader starts the Bus client)")
	flag.StringVar(&flagUser, "user", "", "Drop privileges to this user once the listener is bound")
	flag.StringVar(&flagGroup, "group", "", "Drop privileges to this group once the listener is bound")
	flag.Parse()

	config.Init(flagConfigFile)

	st, err := store.Open(config.Keys.DBPath)
	if err != nil {
		log.Fatal(err)
	}

	natsAddress := config.Keys.NatsAddress
	if !flagIsLeader {
		natsAddress = ""
	}
	busClient := bus.Connect(natsAddress, config.Keys.NatsUsername, config.Keys.NatsPassword)

	appLog := applog.New(st, busClient, flagUnit)

	calibrationStore := calibration.New(config.Keys.StorageRoot)

	rpcClient := workerrpc.New(dnsResolver{}, config.Keys.WorkerRPCScheme, config.Keys.WorkerRPCPort)

	tasks, err := taskengine.Open(config.Keys.TaskDBPath, taskWorkerCount)
	if err != nil {
		log.Fatal(err)
	}
	registerTaskHandlers(tasks, rpcClient)
	if err := tasks.Start(7 * 24 * time.Hour); err != nil {
		log.Fatal(err)
	}
	log.Infof("taskengine: cache dir %s, %d consumers ready", config.Keys.CacheDir, taskWorkerCount)

	jobStore, err := unitapi.OpenJobStore(config.Keys.CacheDir + "/jobs.sqlite")
	if err != nil {
		log.Fatal(err)
	}

	leader := &leaderapi.Service{
		Store:          st,
		Bus:            busClient,
		Cache:          cache.New(),
		RPC:            rpcClient,
		Tasks:          tasks,
		Calibration:    calibrationStore,
		Log:            appLog,
		ExportsDir:     config.Keys.ExportsDir,
		FeatureFlagDir: config.Keys.FeatureFlagDir,
		ConfigRoot:     config.Keys.StorageRoot,
		LeaderUnit:     flagUnit,
	}

	node := &unitapi.Service{
		Jobs:        jobStore,
		Tasks:       tasks,
		Calibration: calibrationStore,
		Unit:        flagUnit,
		IsLeader:    flagIsLeader,
		AppVersion:  "0.1.0",
		UIVersion:   "0.1.0",
		PluginsDir:  config.Keys.StorageRoot + "/plugins",
	}

	r := mux.NewRouter()
	leader.MountRoutes(r)
	node.MountRoutes(r)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	loggedRouter := handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Infof("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})

	server := http.Server{
		Addr:         config.Keys.Addr,
		Handler:      loggedRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // exports and synchronous task waits run well past 10s
	}

	listener, err := net.Listen("tcp", config.Keys.Addr)
	if err != nil {
		log.Fatal(err)
	}

	if err := runtimeEnv.DropPrivileges(flagUser, flagGroup); err != nil {
		log.Fatalf("error while changing user: %s", err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("leader HTTP server listening at %s", config.Keys.Addr)
		runtimeEnv.SystemdNotify(true, "running")
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	wg.Add(1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer wg.Done()
		<-sigs
		runtimeEnv.SystemdNotify(false, "shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("error while shutting down http server: %s", err.Error())
		}

		tasks.Shutdown()
		_ = jobStore.Close()
		_ = tasks.Close()
		_ = st.Close()
	}()

	wg.Wait()
}

// dnsResolver resolves a worker's unit name to its mDNS-advertised
// hostname, which on the Pioreactor cluster LAN is simply the unit name
// with a .local suffix.
type dnsResolver struct{}

func (dnsResolver) Resolve(unit string) (string, error) {
	if unit == domain.UniversalIdentifier {
		return "", nil
	}
	return unit + ".local", nil
}

// registerTaskHandlers wires every TaskEngine kind named in the task
// table to its concrete implementation. Handlers that shell out are
// thin: real process management lives in the pio CLI this leader
// invokes, not in this module.
func registerTaskHandlers(tasks *taskengine.Engine, rpc *workerrpc.Client) {
	tasks.Register("pio_run", handlePioRun)
	tasks.Register("pio_kill", handlePioKill)
	tasks.Register("add_new_pioreactor", handleAddNewPioreactor)
	tasks.Register("write_config_and_sync", handleWriteConfigAndSync(rpc))
	tasks.Register("pio_run_export_experiment_data", handlePioExport)
	tasks.Register("pio_plugins_install", handlePioPluginsMutate("install"))
	tasks.Register("pio_plugins_uninstall", handlePioPluginsMutate("uninstall"))
	tasks.Register("pio_plugins_list", handlePioPluginsList)
	tasks.Register("pio_update_app", handlePioUpdate("app"))
	tasks.Register("pio_update_ui", handlePioUpdate("ui"))
	tasks.Register("pio_update_everything", handlePioUpdate("everything"))
	tasks.Register("pio_update_from_archive_broadcast", handleUpdateFromArchive(rpc))
	tasks.Register("pio_update_from_archive_units", handleUpdateFromArchive(rpc))
	tasks.Register("multicast_post_across_cluster", handleMulticastPostAcrossCluster(rpc))
}
