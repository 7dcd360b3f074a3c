// Package lib provides a Go SDK for staging and processing images with the
// mpifilter MPI pipeline programmatically.
//
// It allows applications to stage images, run the MPI filtering program and
// query the run history without shelling out to the mpifilter CLI binary.
//
// # Quick Start
//
// Create a client, stage a directory of images and process them:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Pipeline(ctx, lib.PipelineOpts{
//	    InputDir:      "/data/photos",
//	    KernelSize:    5,
//	    ExpectedUnits: -1,
//	    RunListener: &lib.Listener{
//	        OnProgress: func(p int) { fmt.Printf("%d%%\n", p) },
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Summary)
//
// # Deployment
//
// [Config.Pipeline] describes the processing deployment: the staging dir the
// MPI nodes share, the launcher, the machinefile and the wrapper script. When
// nil, [DefaultPipelineConfig] is used. [Client.Doctor] checks the deployment
// and [Client.Process] refuses to start if any check fails.
//
// # Tasks
//
// Staging and processing run as background tasks owned by the client. A
// client runs at most one task of each kind at a time, a second one returns
// an error matching [ErrTaskRunning]. Cancelling the context returns right
// away, the task keeps running until it finishes and its kind stays busy
// meanwhile (see [Client.Busy]).
//
// # History
//
// Every task run is recorded with its parameters, result and error. Use
// [Client.History] and [Client.GetRun] to query it. Set [Config.NoHistory] to
// keep the history in memory only.
//
// # Errors
//
// Errors can be checked with [errors.Is] against the sentinel errors
// [ErrNotFound], [ErrNotValid], [ErrNoValidImages], [ErrNothingCopied],
// [ErrPreflightFailed] and [ErrTaskRunning].
package lib
