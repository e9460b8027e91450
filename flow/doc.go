// Package flow provides task routing across language-model providers and the
// four-stage workflow engine built on top of it.
//
// A Router picks a provider for a task category using a fixed primary/secondary
// catalog and the credentials currently known to a ProviderRegistry. An Engine
// creates workflows (design, development, testing, deployment) in a store.Store
// and executes their steps strictly in order, persisting each transition.
//
// Basic usage:
//
//	registry := flow.NewCredentialRegistry(credential.NewEnvStore())
//	router := flow.NewRouter(registry)
//	executors := flow.NewExecutors(router, transport)
//
//	engine, err := flow.New(router, store.NewMemStore(), executors,
//	    flow.WithLogger(logger),
//	    flow.WithStepTimeout(2*time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//
//	wf, err := engine.CreateWorkflow(ctx, "shop", "", requirements, "owner-1")
//	if err != nil {
//	    return err
//	}
//	wf, err = engine.ExecuteWorkflow(ctx, wf.ID)
package flow
