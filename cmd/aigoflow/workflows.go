package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leofalp/aigoflow/core/refine"
	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/memory/sqlitememory"
	"github.com/leofalp/aigoflow/workflows"
)

func (a *app) askCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			answer, err := workflows.Answer(cmd.Context(), c, question)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), answer, map[string]string{"question": question, "answer": answer})
		},
	}
}

func (a *app) chainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chain TOPIC",
		Short: "Write an outline for a topic, then a Twitter post from it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			chain, err := workflows.PromptChain(cmd.Context(), c, strings.Join(args, " "))
			if err != nil {
				return err
			}
			text := fmt.Sprintf("Outline:\n%s\n\nPost:\n%s", chain.Outline, chain.Post)
			return a.print(cmd.OutOrStdout(), text, chain)
		},
	}
}

func (a *app) factsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "facts PERSON",
		Short: "Gather three rated facts about a scientist in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			report, err := workflows.ScientistFacts(cmd.Context(), c, strings.Join(args, " "))
			if err != nil {
				return err
			}
			text := fmt.Sprintf("Family: %s\nRandom: %s\nBest invention: %s\nRatings: %v",
				report.FamilyFact, report.RandomFact, report.BestInventionFact, report.Ratings)
			return a.print(cmd.OutOrStdout(), text, report)
		},
	}
}

type refineFlags struct {
	startIteration int
	maxIterations  int
	checkpointDB   string
	threadID       string
	resume         bool
	trace          bool
}

func (a *app) refineCommand() *cobra.Command {
	flags := &refineFlags{}

	cmd := &cobra.Command{
		Use:   "refine CAMPAIGN",
		Short: "Draft a campaign email and refine it until the evaluator accepts it",
		Long: `Drafts an outreach email for CAMPAIGN, has the model evaluate it and rewrites
it with the feedback until it is accepted or the iteration budget is spent.

With --checkpoint-db every step is stored under --thread, and --resume continues
an interrupted run from its last step.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.resume {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRefine(cmd, flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&flags.startIteration, "start-iteration", 0, "iteration count to start from (default from config)")
	cmd.Flags().IntVar(&flags.maxIterations, "max-iterations", 0, "iteration limit (default from config)")
	cmd.Flags().StringVar(&flags.checkpointDB, "checkpoint-db", "", "SQLite file to checkpoint every step in")
	cmd.Flags().StringVar(&flags.threadID, "thread", "", "checkpoint thread id (generated when empty)")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "continue the run stored under --thread")
	cmd.Flags().BoolVar(&flags.trace, "trace", false, "print every transition to stderr")
	return cmd
}

func (a *app) runRefine(cmd *cobra.Command, flags *refineFlags, campaign string) error {
	start, limit := a.cfg.Refine.StartIteration, a.cfg.Refine.MaxIterations
	if cmd.Flags().Changed("start-iteration") {
		start = flags.startIteration
	}
	if cmd.Flags().Changed("max-iterations") {
		limit = flags.maxIterations
	}

	c, err := a.newClient()
	if err != nil {
		return err
	}

	var options []refine.Option
	if flags.trace {
		options = append(options, refine.WithObserver(func(transition refine.Transition) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (iteration %d/%d, verdict %q)\n",
				transition.From, transition.To, transition.State.IterationCount, transition.State.IterationLimit, transition.State.Verdict)
		}))
	}

	if flags.resume && (flags.checkpointDB == "" || flags.threadID == "") {
		return fmt.Errorf("--resume needs --checkpoint-db and --thread")
	}
	if flags.checkpointDB != "" {
		saver, err := sqlitememory.Open(flags.checkpointDB)
		if err != nil {
			return err
		}
		defer utils.CloseWithLog(saver)

		if flags.threadID == "" {
			flags.threadID = uuid.NewString()
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "checkpoint thread:", flags.threadID)
		options = append(options, refine.WithCheckpointer(saver, flags.threadID))
	}

	var final *refine.WorkflowState
	if flags.resume {
		options = append([]refine.Option{
			refine.WithLogger(a.logger),
			refine.WithParseRetries(a.cfg.Refine.ParseRetries),
		}, options...)
		loop, err := refine.New(refine.ClientGenerator{Client: c}, workflows.Outreach{}, options...)
		if err != nil {
			return err
		}
		final, err = loop.Resume(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		final, err = workflows.RefineEmail(cmd.Context(), c, campaign,
			workflows.WithIterations(start, limit),
			workflows.WithParseRetries(a.cfg.Refine.ParseRetries),
			workflows.WithEmailLogger(a.logger),
			workflows.WithLoopOptions(options...),
		)
		if err != nil {
			return err
		}
	}

	text := fmt.Sprintf("%s\n\n-- verdict: %s after %d of %d iterations", final.Artifact, final.Verdict, final.IterationCount, final.IterationLimit)
	if final.Feedback != "" {
		text += "\n-- feedback: " + final.Feedback
	}
	return a.print(cmd.OutOrStdout(), text, final)
}
