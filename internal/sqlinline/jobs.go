package sqlinline

const QInsertJob = `--sql 290c4b1f-1f1b-4b57-a9f5-561d01d703d4
insert into jobs (id, project_id, type, state)
values ($1, $2, $3, 'queued');
`

const QGetJob = `--sql fee109f5-d7d9-49aa-9552-a843e6879223
select id, project_id, type, state, coalesce(step, ''), coalesce(error, ''),
       started_at, finished_at, created_at
from jobs
where id = $1;
`

// QPatchJob applies a partial update. started_at is set exactly once on the
// transition into running, finished_at exactly once on a terminal transition.
const QPatchJob = `--sql 5ba0e28b-1f01-4cf7-9287-cd63c2970a82
update jobs
set state       = coalesce($2, state),
    step        = coalesce($3, step),
    error       = coalesce($4, error),
    started_at  = case when $2 = 'running' and started_at is null
                       then now() else started_at end,
    finished_at = case when $2 in ('done', 'failed') and finished_at is null
                       then now() else finished_at end
where id = $1;
`

const QListJobsByProject = `--sql 62f841f1-755e-4a69-a218-fd5f0e31f99f
select id, project_id, type, state, coalesce(step, ''), coalesce(error, ''),
       started_at, finished_at, created_at
from jobs
where project_id = $1
order by created_at desc;
`

const QAppendJobLog = `--sql c8ac130d-9d74-4acb-8ff1-7c5e701064bb
insert into job_logs (job_id, level, message, ts)
values ($1, $2, $3, now());
`

const QListJobLogs = `--sql 1ab6f1ea-d282-44a0-9660-22f0e5c60bbe
select id, job_id, level, message, ts
from job_logs
where job_id = $1
order by ts asc, id asc;
`

const QFailStaleJobs = `--sql 6e0f4b1b-f9c2-4915-818d-e7ff7d3000c5
update jobs
set state = 'failed',
    error = 'abandoned: worker lost the job (stale running state)',
    finished_at = now()
where state = 'running'
  and started_at is not null
  and started_at < now() - $1::interval
returning id;
`
