package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/fleetstore/internal/server"
	"github.com/ChuLiYu/fleetstore/pkg/types"
)

const rpcTimeout = 30 * time.Second

func buildJobCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "job",
		Short: "Read and write jobs on a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "server address, defaults to server.address from config")

	dial := func() (*server.Client, error) {
		target := addr
		if target == "" {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			target = cfg.Server.Address
		}
		return server.Dial(target)
	}

	cmd.AddCommand(buildJobGetCommand(dial))
	cmd.AddCommand(buildJobAddCommand(dial))
	cmd.AddCommand(buildJobUpdateCommand(dial))
	cmd.AddCommand(buildJobDeleteCommand(dial))
	return cmd
}

type dialFunc func() (*server.Client, error)

func withClient(dial dialFunc, fn func(ctx context.Context, c *server.Client) error) error {
	c, err := dial()
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	return fn(ctx, c)
}

func buildJobGetCommand(dial dialFunc) *cobra.Command {
	var req server.GetJobRequest

	cmd := &cobra.Command{
		Use:   "get",
		Short: "List jobs matching a filter",
		Long: `List jobs of a location/sector.

Filter types: 1 active, 2 by status, 3 by job id, 4 by robot and status,
5 finished within --from/--to. Sort types: 1 robot, 2 job id, 3 creator,
4 start time, 5 message. Order type 2 sorts descending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(dial, func(ctx context.Context, c *server.Client) error {
				resp, err := c.GetJob(ctx, &req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp.Jobs)
			})
		},
	}

	f := cmd.Flags()
	f.Int64Var(&req.LocationID, "location", 0, "location id")
	f.Int64Var(&req.SectorID, "sector", 0, "sector id")
	f.Int64Var(&req.RobotID, "robot", 0, "robot id")
	f.Int64Var(&req.JobID, "id", 0, "job id")
	f.IntVar(&req.JobStatus, "status", 0, "job status")
	f.StringVar(&req.JobFromDate, "from", "", "from date, YYYY-MM-DD or RFC3339")
	f.StringVar(&req.JobToDate, "to", "", "to date, inclusive of the whole day")
	f.IntVar(&req.FilterType, "filter", 0, "filter type")
	f.IntVar(&req.SortType, "sort", 0, "sort type")
	f.IntVar(&req.OrderType, "order", 0, "order type")
	f.Int64Var(&req.FetchOffset, "offset", 0, "documents to skip")
	f.Int64Var(&req.FetchLimit, "limit", 0, "maximum documents to return")
	return cmd
}

func buildJobAddCommand(dial dialFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a job from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := readJob(file)
			if err != nil {
				return err
			}
			return withClient(dial, func(ctx context.Context, c *server.Client) error {
				resp, err := c.AddJob(ctx, &server.AddJobRequest{Job: *job})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %d created\n", resp.JobID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file containing the job")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildJobUpdateCommand(dial dialFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace a job by its job_id from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := readJob(file)
			if err != nil {
				return err
			}
			if job.JobID == 0 {
				return fmt.Errorf("job file %s has no job_id", file)
			}
			return withClient(dial, func(ctx context.Context, c *server.Client) error {
				resp, err := c.UpdateJob(ctx, &server.UpdateJobRequest{Job: *job})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %d updated (update_count %d)\n", job.JobID, resp.UpdateCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file containing the job")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildJobDeleteCommand(dial dialFunc) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a job by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(dial, func(ctx context.Context, c *server.Client) error {
				if _, err := c.DeleteJob(ctx, &server.DeleteJobRequest{JobID: id}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %d deleted\n", id)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "job id")
	cmd.MarkFlagRequired("id")
	return cmd
}

func readJob(path string) (*types.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}
	return &job, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
