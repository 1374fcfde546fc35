// Command worker is the Functions language worker for Go. Function apps are
// built as Go plugins; each function's script file names the plugin and its
// exported Assembly variable lists the entry points.
package main

import "github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/cli"

func main() {
	cli.Execute(cli.Options{Use: "worker"})
}
