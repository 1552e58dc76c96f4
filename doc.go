// Copyright 2024 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

/*
The contextfeat package contains tools and functions to compute
multi-scale context features from class prediction maps, with a focus
on distributed processing using cloud or local job queues.

Introduction

A prediction map is a 2 or 3 dimensional field where every location
holds one probability per class. Context features summarise the
neighbourhood of each location by averaging the probabilities over a
set of nested square (or cubic) windows, so that a later classifier
can see not just a pixel but its surroundings at several scales. The
averages are computed from integral images, so the cost per location
is constant regardless of window size, and each window radius only
accounts for the ring of locations it adds beyond the previous
radius.

The core of the package is three small packages:
  field       multi-channel scalar fields in 2 and 3 dimensions
  integralimg integral images and volumes with windowed sums
  multiscale  ring averages and variances over many radii

Several standalone tools are provided, which all give information on
what they do and how they work with the '-h' flag:
  contextfeat   compute features for a single prediction map
  stackcontext  compute 3d features from a directory of slice images
  contextgraph  graph the radius profile at a given location
  contextreport build a PDF report of feature heatmaps

Pipeline

Larger collections of prediction maps can be processed with a job
queue, in the same way for a single computer or for a fleet of cloud
servers. The contextpipeline command listens on the queues and
processes any maps it finds, the maptopipeline command uploads a map
and adds it to the queue, and mkpipeline sets up the queues and
storage buckets needed. Results can be downloaded with getcontext,
and the lscontext, rmmap, logwholequeue, trimqueue and
getandpurgequeue commands help inspect and administer the pipeline.

When a job is taken from a queue by a process it is hidden from the
queue for 2 minutes so that no other process can take it. Once per
minute when processing a job the process sends a message updating the
queue, to tell it to keep the job hidden for two minutes. This is
called the "heartbeat"; if the process fails for any reason the
heartbeat will stop, and in 2 minutes the job will reappear on the
queue for another process to have a go at. Once a job is completed
successfully it is deleted from the queue.

Two connection types are provided, selected with the '-c' flag on the
pipeline commands. The 'local' connection stores queues and files
under a directory on the local filesystem, and is the simplest way to
use the pipeline. The default, 'aws', uses Amazon's SQS and S3
systems, so that any number of computers can share the work; to use
it you'll need to change the settings in cloudsettings.go and set up
your ~/.aws/credentials appropriately.

Queues

Queue names are defined in cloudsettings.go.

queueFeature

Each message in the queueFeature queue is a map name, optionally
followed by a space and a comma separated list of radii to use. The
context features of the prediction map with that name are computed,
a heatmap image is rendered and uploaded for each one, and the map
name is then added to the queueReport queue.

  example message: SoilSections_Batch3
  example message: SoilSections_Batch3 2,4,8

queueReport

A message on the queueReport queue contains only a map name. The
feature heatmaps for the map are collected into a PDF report, which
is generated and uploaded.

  example message: SoilSections_Batch3
*/
package contextfeat
